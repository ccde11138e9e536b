package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// GlobalRoom always exists and is never torn down.
	GlobalRoom = "global"

	// roomHistoryCap bounds the per-room backlog; oldest messages drop first.
	roomHistoryCap = 100

	chatChannelPrefix = "chat:"
)

// Chat event kinds. Only user messages enter the history; system and
// presence events are broadcast-only.
const (
	EventMessage  = "message"
	EventSystem   = "system"
	EventPresence = "presence"
)

// ChatMessage is one chat event, as stored in history and streamed to
// subscribers.
type ChatMessage struct {
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	Type       string    `json:"type"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Body       string    `json:"body,omitempty"`
	Count      int       `json:"count,omitempty"` // presence events only
	SentAt     time.Time `json:"sent_at"`

	origin string // relay dedup, not serialized to clients
}

type chatRoom struct {
	name    string
	members map[string]int // userID → join refcount
	history []ChatMessage
}

// ChatHub is the in-process message switch. Rooms are created on first
// join; private rooms are torn down with their history when the last
// member leaves, game rooms and the global room persist. Events dispatch under the
// hub lock, so delivery order within a room matches acceptance order. An
// optional Redis client relays user messages across instances; with a nil
// client the hub is purely local, which is also how the tests run it.
type ChatHub struct {
	rdb *redis.Client

	mu       sync.Mutex
	rooms    map[string]*chatRoom
	streams  map[string]map[chan ChatMessage]struct{} // userID → open streams
	instance string
}

func NewChatHub(rdb *redis.Client) *ChatHub {
	h := &ChatHub{
		rdb:      rdb,
		rooms:    make(map[string]*chatRoom),
		streams:  make(map[string]map[chan ChatMessage]struct{}),
		instance: uuid.NewString(),
	}
	h.rooms[GlobalRoom] = &chatRoom{name: GlobalRoom, members: make(map[string]int)}
	return h
}

// GameRoom returns the room name for a match.
func GameRoom(matchID string) string {
	return "game-" + matchID
}

// PrivateRoom returns the canonical room name for a user pair. Order of
// the arguments does not matter.
func PrivateRoom(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return "private-" + pair[0] + "-" + pair[1]
}

// Join adds the user to a room, creating it on first join. The joiner's
// open streams receive the room backlog; everyone else gets a system
// notice and the room gets a fresh presence count. Rejoins are counted so
// one Leave never kicks a user with two open tabs. Private rooms admit
// only the two users encoded in the name.
func (h *ChatHub) Join(room, userID, username string) error {
	if !validRoomName(room) {
		return fail(ErrValidation, "invalid room name")
	}
	if !privateRoomAllows(room, userID) {
		return fail(ErrForbidden, "not a participant of this conversation")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok {
		r = &chatRoom{name: room, members: make(map[string]int)}
		h.rooms[room] = r
	}
	firstJoin := r.members[userID] == 0
	r.members[userID]++

	// backlog replay to the joiner only
	for _, past := range r.history {
		h.sendToUserLocked(userID, past)
	}

	if firstJoin {
		h.broadcastLocked(r, ChatMessage{
			ID:         uuid.NewString(),
			Room:       room,
			Type:       EventSystem,
			SenderName: username,
			Body:       username + " joined",
			SentAt:     time.Now(),
		}, userID)
	}
	h.broadcastPresenceLocked(r)
	return nil
}

// Leave drops one membership. The last member out of a private room
// deletes it, history included; game rooms keep their backlog while
// empty so a player who rejoins mid-match still gets the replay.
// Surviving rooms get an updated presence count.
func (h *ChatHub) Leave(room, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok {
		return fail(ErrNotFound, "room not found")
	}
	if r.members[userID] == 0 {
		return fail(ErrInvalidState, "not a member of this room")
	}
	r.members[userID]--
	if r.members[userID] == 0 {
		delete(r.members, userID)
	}
	if strings.HasPrefix(room, "private-") && len(r.members) == 0 {
		delete(h.rooms, room)
		return nil
	}
	h.broadcastPresenceLocked(r)
	return nil
}

// Send appends a message to the room history and fans it out to every
// member's open streams, the sender included (the sender's own UI updates
// via the broadcast, not a local echo). Non-members cannot post.
func (h *ChatHub) Send(room, senderID, senderName, body string) (*ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fail(ErrValidation, "message body is empty")
	}
	if len(body) > 2000 {
		return nil, fail(ErrValidation, "message body too long")
	}

	msg := ChatMessage{
		ID:         uuid.NewString(),
		Room:       room,
		Type:       EventMessage,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		SentAt:     time.Now(),
		origin:     h.instance,
	}

	h.mu.Lock()
	r, ok := h.rooms[room]
	if !ok {
		h.mu.Unlock()
		return nil, fail(ErrNotFound, "room not found")
	}
	if r.members[senderID] == 0 {
		h.mu.Unlock()
		return nil, fail(ErrForbidden, "join the room before sending")
	}
	h.appendHistoryLocked(r, msg)
	h.broadcastLocked(r, msg, "")
	h.mu.Unlock()

	if h.rdb != nil {
		h.publish(msg)
	}
	return &msg, nil
}

// History returns the room backlog, oldest first. Only current members
// may read it.
func (h *ChatHub) History(room, userID string) ([]ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[room]
	if !ok {
		return nil, fail(ErrNotFound, "room not found")
	}
	if r.members[userID] == 0 {
		return nil, fail(ErrForbidden, "join the room before reading history")
	}
	out := make([]ChatMessage, len(r.history))
	copy(out, r.history)
	return out, nil
}

// Members returns the current member count of a room.
func (h *ChatHub) Members(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[room]; ok {
		return len(r.members)
	}
	return 0
}

// Subscribe opens a stream for the user covering every room they are a
// member of. The returned cancel func must be called when the stream ends.
func (h *ChatHub) Subscribe(userID string) (<-chan ChatMessage, func()) {
	ch := make(chan ChatMessage, 256)
	h.mu.Lock()
	if h.streams[userID] == nil {
		h.streams[userID] = make(map[chan ChatMessage]struct{})
	}
	h.streams[userID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if set, ok := h.streams[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.streams, userID)
			}
		}
		h.mu.Unlock()
	}
}

func (h *ChatHub) appendHistoryLocked(r *chatRoom, msg ChatMessage) {
	r.history = append(r.history, msg)
	if len(r.history) > roomHistoryCap {
		r.history = r.history[len(r.history)-roomHistoryCap:]
	}
}

// broadcastLocked pushes an event to every member's streams, minus the
// excluded user. Caller holds h.mu.
func (h *ChatHub) broadcastLocked(r *chatRoom, msg ChatMessage, exclude string) {
	for userID := range r.members {
		if userID == exclude {
			continue
		}
		h.sendToUserLocked(userID, msg)
	}
}

func (h *ChatHub) broadcastPresenceLocked(r *chatRoom) {
	h.broadcastLocked(r, ChatMessage{
		ID:     uuid.NewString(),
		Room:   r.name,
		Type:   EventPresence,
		Count:  len(r.members),
		SentAt: time.Now(),
	}, "")
}

func (h *ChatHub) sendToUserLocked(userID string, msg ChatMessage) {
	for ch := range h.streams[userID] {
		select {
		case ch <- msg:
		default:
			// Slow consumer, drop rather than block the hub.
		}
	}
}

func (h *ChatHub) publish(msg ChatMessage) {
	payload, _ := json.Marshal(relayEnvelope{Origin: h.instance, Message: msg})
	if err := h.rdb.Publish(context.Background(),
		chatChannelPrefix+msg.Room, payload).Err(); err != nil {
		log.Printf("⚠️ chat relay publish failed: %v", err)
	}
}

type relayEnvelope struct {
	Origin  string      `json:"origin"`
	Message ChatMessage `json:"message"`
}

// StartRelay consumes chat messages published by other instances and
// delivers them to local members. No-op without a Redis client.
func (h *ChatHub) StartRelay(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	sub := h.rdb.PSubscribe(ctx, chatChannelPrefix+"*")
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-sub.Channel():
				if !ok {
					return
				}
				var env relayEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					log.Printf("⚠️ chat relay: bad payload: %v", err)
					continue
				}
				if env.Origin == h.instance {
					continue
				}
				h.mu.Lock()
				if r, ok := h.rooms[env.Message.Room]; ok {
					h.appendHistoryLocked(r, env.Message)
					h.broadcastLocked(r, env.Message, "")
				}
				h.mu.Unlock()
			}
		}
	}()
	log.Printf("💬 chat relay listening on %s*", chatChannelPrefix)
}

// privateRoomAllows reports whether userID is one of the pair encoded in
// a private room name. Non-private rooms admit everyone.
func privateRoomAllows(room, userID string) bool {
	if !strings.HasPrefix(room, "private-") {
		return true
	}
	pair := strings.TrimPrefix(room, "private-")
	return strings.HasPrefix(pair, userID+"-") || strings.HasSuffix(pair, "-"+userID)
}

func validRoomName(room string) bool {
	if room == GlobalRoom {
		return true
	}
	if strings.HasPrefix(room, "game-") && len(room) > len("game-") {
		return true
	}
	if strings.HasPrefix(room, "private-") && len(room) > len("private-") {
		return true
	}
	return false
}

// SSEFormat renders a message as a server-sent event.
func (m ChatMessage) SSEFormat() string {
	payload, _ := json.Marshal(m)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", m.Type, payload)
}
