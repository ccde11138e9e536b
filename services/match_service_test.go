package services

import (
	"testing"

	"game-arena-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchFixture(t *testing.T) (*MatchService, *WalletService, *models.Game) {
	t.Helper()
	db := testDB(t)
	ws := NewWalletService(db)
	ms := NewMatchService(db, ws)
	game := seedGame(t, db, "ludo", 10, 2000, 10)
	return ms, ws, game
}

func TestMatchSettlement(t *testing.T) {
	ms, _, game := matchFixture(t)
	db := ms.DB

	p1 := seedUser(t, db, "p1", 500)
	p2 := seedUser(t, db, "p2", 500)
	p3 := seedUser(t, db, "p3", 500)

	match, err := ms.CreateMatch(game.ID, 200, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchWaiting, match.Status)

	_, err = ms.JoinMatch(match.ID, p2.ID)
	require.NoError(t, err)
	_, err = ms.JoinMatch(match.ID, p3.ID)
	require.NoError(t, err)

	started, err := ms.StartMatch(match.ID, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchInProgress, started.Status)
	for _, p := range []*models.User{p1, p2, p3} {
		assert.Equal(t, 300.0, balanceOf(t, db, p.ID))
	}

	settlement, err := ms.CompleteMatch(match.ID, p2.ID)
	require.NoError(t, err)

	// 3 players x 200 entry, 10% commission
	assert.Equal(t, 600.0, settlement.PrizePool)
	assert.Equal(t, 60.0, settlement.Commission)
	assert.Equal(t, 540.0, settlement.Payout)

	assert.Equal(t, 840.0, balanceOf(t, db, p2.ID)) // 300 + 540
	assert.Equal(t, 300.0, balanceOf(t, db, p1.ID))
	assert.Equal(t, 300.0, balanceOf(t, db, p3.ID))

	// player statuses and stats
	var pms []models.PlayerMatch
	require.NoError(t, db.Where("match_id = ?", match.ID).Find(&pms).Error)
	for _, pm := range pms {
		if pm.UserID == p2.ID {
			assert.Equal(t, models.PlayerWon, pm.Status)
		} else {
			assert.Equal(t, models.PlayerLost, pm.Status)
		}
	}
	var winner models.User
	require.NoError(t, db.First(&winner, "id = ?", p2.ID).Error)
	assert.Equal(t, int64(1), winner.Wins)
	assert.Equal(t, int64(0), winner.Losses)

	// every money move left a ledger row
	var entries, wins int64
	db.Model(&models.Transaction{}).Where("match_id = ? AND type = ?", match.ID, models.TxGameEntry).Count(&entries)
	db.Model(&models.Transaction{}).Where("match_id = ? AND type = ?", match.ID, models.TxGameWin).Count(&wins)
	assert.Equal(t, int64(3), entries)
	assert.Equal(t, int64(1), wins)
}

func TestSubscriberCommissionDiscount(t *testing.T) {
	ms, _, game := matchFixture(t)
	db := ms.DB

	p1 := seedUser(t, db, "p1", 500)
	sub := seedSubscriber(t, db, "sub", 500)

	match, err := ms.CreateMatch(game.ID, 200, p1.ID)
	require.NoError(t, err)
	_, err = ms.JoinMatch(match.ID, sub.ID)
	require.NoError(t, err)
	_, err = ms.StartMatch(match.ID, p1.ID)
	require.NoError(t, err)

	settlement, err := ms.CompleteMatch(match.ID, sub.ID)
	require.NoError(t, err)

	// 400 pool at 10% would be 40; the subscriber pays 75% of that
	assert.Equal(t, 30.0, settlement.Commission)
	assert.Equal(t, 370.0, settlement.Payout)
}

func TestCompleteIsTerminal(t *testing.T) {
	ms, _, game := matchFixture(t)
	db := ms.DB

	p1 := seedUser(t, db, "p1", 500)
	p2 := seedUser(t, db, "p2", 500)

	match, err := ms.CreateMatch(game.ID, 100, p1.ID)
	require.NoError(t, err)
	_, err = ms.JoinMatch(match.ID, p2.ID)
	require.NoError(t, err)
	_, err = ms.StartMatch(match.ID, p2.ID)
	require.NoError(t, err)
	_, err = ms.CompleteMatch(match.ID, p1.ID)
	require.NoError(t, err)

	before := balanceOf(t, db, p1.ID)

	// A second completion is rejected with no side effects.
	_, err = ms.CompleteMatch(match.ID, p2.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, before, balanceOf(t, db, p1.ID))

	var m models.GameMatch
	require.NoError(t, db.First(&m, "id = ?", match.ID).Error)
	assert.Equal(t, p1.ID, *m.WinnerID)
}

func TestJoinRules(t *testing.T) {
	ms, _, game := matchFixture(t)
	db := ms.DB

	p1 := seedUser(t, db, "p1", 500)
	p2 := seedUser(t, db, "p2", 500)
	broke := seedUser(t, db, "broke", 20)

	match, err := ms.CreateMatch(game.ID, 100, p1.ID)
	require.NoError(t, err)

	// creator is already in
	_, err = ms.JoinMatch(match.ID, p1.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// below the platform floor
	_, err = ms.JoinMatch(match.ID, broke.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = ms.JoinMatch(match.ID, p2.ID)
	require.NoError(t, err)
	_, err = ms.StartMatch(match.ID, p1.ID)
	require.NoError(t, err)

	// no joining a running match
	late := seedUser(t, db, "late", 500)
	_, err = ms.JoinMatch(match.ID, late.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCreateValidation(t *testing.T) {
	ms, _, game := matchFixture(t)
	db := ms.DB

	rich := seedUser(t, db, "rich", 5000)

	// entry outside the game's range
	_, err := ms.CreateMatch(game.ID, 5, rich.ID)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ms.CreateMatch(game.ID, 3000, rich.ID)
	assert.ErrorIs(t, err, ErrValidation)

	// balance covers the floor but not the entry
	low := seedUser(t, db, "low", 60)
	_, err = ms.CreateMatch(game.ID, 100, low.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// unknown game
	_, err = ms.CreateMatch("nope", 100, rich.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartRules(t *testing.T) {
	ms, _, game := matchFixture(t)
	db := ms.DB

	p1 := seedUser(t, db, "p1", 500)
	p2 := seedUser(t, db, "p2", 120)
	outsider := seedUser(t, db, "outsider", 500)

	match, err := ms.CreateMatch(game.ID, 100, p1.ID)
	require.NoError(t, err)

	// minimum two players
	_, err = ms.StartMatch(match.ID, p1.ID)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ms.JoinMatch(match.ID, p2.ID)
	require.NoError(t, err)

	// only participants can start
	_, err = ms.StartMatch(match.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// a player spends down between join and start: nobody gets charged
	require.NoError(t, db.Model(&models.Wallet{}).
		Where("user_id = ?", p2.ID).Update("balance", 40).Error)
	_, err = ms.StartMatch(match.ID, p1.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 500.0, balanceOf(t, db, p1.ID))
	assert.Equal(t, 40.0, balanceOf(t, db, p2.ID))

	var m models.GameMatch
	require.NoError(t, db.First(&m, "id = ?", match.ID).Error)
	assert.Equal(t, models.MatchWaiting, m.Status)
}

func TestCompleteRequiresJoinedWinner(t *testing.T) {
	ms, _, game := matchFixture(t)
	db := ms.DB

	p1 := seedUser(t, db, "p1", 500)
	p2 := seedUser(t, db, "p2", 500)
	outsider := seedUser(t, db, "outsider", 500)

	match, err := ms.CreateMatch(game.ID, 100, p1.ID)
	require.NoError(t, err)
	_, err = ms.JoinMatch(match.ID, p2.ID)
	require.NoError(t, err)

	// cannot complete a waiting match
	_, err = ms.CompleteMatch(match.ID, p1.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = ms.StartMatch(match.ID, p1.ID)
	require.NoError(t, err)

	_, err = ms.CompleteMatch(match.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRankProgression(t *testing.T) {
	assert.Equal(t, 1, rankForWins(0))
	assert.Equal(t, 1, rankForWins(9))
	assert.Equal(t, 2, rankForWins(10))
	assert.Equal(t, 3, rankForWins(25))
	assert.Equal(t, 4, rankForWins(50))
	assert.Equal(t, 5, rankForWins(100))
	assert.Equal(t, 5, rankForWins(500))
}
