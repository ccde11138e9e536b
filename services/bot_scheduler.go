package services

import (
	"log"
	"sync"
	"time"

	"game-arena-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// BotUsername identifies the seeded practice opponent account.
	BotUsername = "arena_bot"

	botJoinDelay  = 15 * time.Second
	botStartDelay = 5 * time.Second
	botPlayDelay  = 30 * time.Second
)

// BotScheduler fills lonely matches with a practice opponent. Each stage
// runs on its own timer keyed by match id; Cancel stops whatever is still
// pending, so a real player's action always supersedes the bot's.
//
// The bot loses every match it plays: on auto-complete the human opponent
// is declared winner.
type BotScheduler struct {
	DB      *gorm.DB
	Matches *MatchService
	BotID   string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewBotScheduler(db *gorm.DB, matches *MatchService, botID string) *BotScheduler {
	return &BotScheduler{
		DB:      db,
		Matches: matches,
		BotID:   botID,
		timers:  make(map[string]*time.Timer),
	}
}

// ScheduleAutoJoin arms the join timer for a freshly created match.
func (b *BotScheduler) ScheduleAutoJoin(matchID string) {
	b.arm(matchID, botJoinDelay, func() { b.autoJoin(matchID) })
}

// Cancel stops any pending timer for the match. Safe to call for matches
// the scheduler never touched.
func (b *BotScheduler) Cancel(matchID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.timers[matchID]; ok {
		t.Stop()
		delete(b.timers, matchID)
	}
}

// Shutdown cancels every pending timer.
func (b *BotScheduler) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}

// arm replaces the match's timer with a new stage. One timer per match at
// a time keeps Cancel unambiguous.
func (b *BotScheduler) arm(matchID string, d time.Duration, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.timers[matchID]; ok {
		t.Stop()
	}
	b.timers[matchID] = time.AfterFunc(d, func() {
		b.mu.Lock()
		delete(b.timers, matchID)
		b.mu.Unlock()
		fn()
	})
}

func (b *BotScheduler) autoJoin(matchID string) {
	var count int64
	if err := b.DB.Model(&models.PlayerMatch{}).
		Where("match_id = ? AND status = ?", matchID, models.PlayerJoined).
		Count(&count).Error; err != nil {
		log.Printf("⚠️ bot join %s: player count failed: %v", matchID, err)
		return
	}
	if count != 1 {
		// A real opponent showed up, the bot stands down.
		return
	}
	if _, err := b.Matches.JoinMatch(matchID, b.BotID); err != nil {
		log.Printf("⚠️ bot could not join match %s: %v", matchID, err)
		return
	}
	log.Printf("🤖 bot joined match %s", matchID)
	b.arm(matchID, botStartDelay, func() { b.autoStart(matchID) })
}

func (b *BotScheduler) autoStart(matchID string) {
	if _, err := b.Matches.StartMatch(matchID, b.BotID); err != nil {
		log.Printf("⚠️ bot could not start match %s: %v", matchID, err)
		return
	}
	log.Printf("🤖 bot started match %s", matchID)
	b.arm(matchID, botPlayDelay, func() { b.autoComplete(matchID) })
}

func (b *BotScheduler) autoComplete(matchID string) {
	var players []models.PlayerMatch
	if err := b.DB.Where("match_id = ? AND status = ? AND user_id <> ?",
		matchID, models.PlayerJoined, b.BotID).Find(&players).Error; err != nil || len(players) == 0 {
		log.Printf("⚠️ bot complete %s: no human opponent found", matchID)
		return
	}
	winnerID := players[0].UserID
	if _, err := b.Matches.CompleteMatch(matchID, winnerID); err != nil {
		log.Printf("⚠️ bot could not complete match %s: %v", matchID, err)
		return
	}
	log.Printf("🤖 bot conceded match %s to %s", matchID, winnerID)
}

// EnsureBotUser finds or seeds the practice opponent with a deep wallet.
func EnsureBotUser(db *gorm.DB) (string, error) {
	var bot models.User
	err := db.Where("username = ? AND is_bot = ?", BotUsername, true).First(&bot).Error
	if err == nil {
		return bot.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", err
	}

	bot = models.User{
		ID:       uuid.NewString(),
		Username: BotUsername,
		Email:    "bot@game-arena.local",
		Password: uuid.NewString(), // unusable, logins go through bcrypt
		Role:     models.RoleUser,
		IsBot:    true,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bot).Error; err != nil {
			return err
		}
		return tx.Create(&models.Wallet{
			ID:      uuid.NewString(),
			UserID:  bot.ID,
			Balance: 1_000_000,
		}).Error
	})
	if err != nil {
		return "", err
	}
	log.Printf("🤖 seeded practice opponent %s", bot.ID)
	return bot.ID, nil
}
