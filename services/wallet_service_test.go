package services

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"game-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walletApp(ws *WalletService, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/wallet/deposit", ws.Deposit)
	app.Post("/wallet/withdraw", ws.Withdraw)
	app.Post("/admin/wallet/approve-deposit/:id", ws.ApproveDeposit)
	return app
}

func TestApplyCreditsAndRecords(t *testing.T) {
	db := testDB(t)
	ws := NewWalletService(db)
	u := seedUser(t, db, "alice", 0)

	err := ws.apply(&models.Transaction{
		ID:     uuid.NewString(),
		UserID: u.ID,
		Type:   models.TxDeposit,
		Amount: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, balanceOf(t, db, u.ID))

	sum, err := ws.SumCompleted(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sum)
}

func TestApplyRejectsOverdraft(t *testing.T) {
	db := testDB(t)
	ws := NewWalletService(db)
	u := seedUser(t, db, "bob", 50)

	err := ws.apply(&models.Transaction{
		ID:     uuid.NewString(),
		UserID: u.ID,
		Type:   models.TxWithdrawal,
		Amount: -80,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing written: balance and ledger both untouched.
	assert.Equal(t, 50.0, balanceOf(t, db, u.ID))
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("user_id = ?", u.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDepositApprovalFlow(t *testing.T) {
	db := testDB(t)
	ws := NewWalletService(db)
	u := seedUser(t, db, "carol", 0)
	app := walletApp(ws, u.ID)

	// Deposit goes pending, no balance change yet.
	req := httptest.NewRequest("POST", "/wallet/deposit", strings.NewReader("amount=250"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var txn models.Transaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&txn))
	assert.Equal(t, models.TxPending, txn.Status)
	assert.Equal(t, 0.0, balanceOf(t, db, u.ID))

	// Approval credits the wallet.
	resp, err = app.Test(httptest.NewRequest("POST", "/admin/wallet/approve-deposit/"+txn.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 250.0, balanceOf(t, db, u.ID))

	// A second approval is rejected and does not double-credit.
	resp, err = app.Test(httptest.NewRequest("POST", "/admin/wallet/approve-deposit/"+txn.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, 250.0, balanceOf(t, db, u.ID))
}

func TestWithdrawCarriesBandedFee(t *testing.T) {
	db := testDB(t)
	ws := NewWalletService(db)
	u := seedUser(t, db, "dave", 1000)
	app := walletApp(ws, u.ID)

	body, _ := json.Marshal(fiber.Map{"amount": 200.0})
	req := httptest.NewRequest("POST", "/wallet/withdraw", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out struct {
		Payout float64 `json:"payout"`
		Fee    float64 `json:"fee"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 8.0, out.Fee) // 200 falls in the 4% band
	assert.Equal(t, 192.0, out.Payout)
	assert.Equal(t, 800.0, balanceOf(t, db, u.ID))
}

func TestReconciliationMatchesApplyPath(t *testing.T) {
	db := testDB(t)
	ws := NewWalletService(db)
	u := seedUser(t, db, "erin", 0)

	for _, amt := range []float64{120.5, -30.25, 9.99} {
		txType := models.TxDeposit
		if amt < 0 {
			txType = models.TxWithdrawal
		}
		require.NoError(t, ws.apply(&models.Transaction{
			ID:     uuid.NewString(),
			UserID: u.ID,
			Type:   txType,
			Amount: amt,
		}))
	}

	sum, err := ws.SumCompleted(u.ID)
	require.NoError(t, err)
	assert.Equal(t, balanceOf(t, db, u.ID), sum)
}
