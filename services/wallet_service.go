package services

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"strconv"

	"game-arena-system/models"
	"game-arena-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Redeeming reward points: 100 points buy 10 in wallet credit.
const (
	pointRedeemValue = 0.10
	minRedeemPoints  = 100
)

// WalletService is the ledger store: wallets plus their append-only
// transaction trail. adjustBalance is the only path a balance changes by,
// and every change is paired with a Transaction row in the same DB
// transaction.
type WalletService struct {
	DB    *gorm.DB
	locks *keyedMutex
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db, locks: newKeyedMutex()}
}

// CreateWallet provisions the 1:1 wallet for a new user.
func (s *WalletService) CreateWallet(tx *gorm.DB, userID string) (*models.Wallet, error) {
	w := &models.Wallet{ID: uuid.NewString(), UserID: userID, Balance: 0}
	if err := tx.Create(w).Error; err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

// WalletByUser fetches a user's wallet.
func (s *WalletService) WalletByUser(userID string) (*models.Wallet, error) {
	var w models.Wallet
	if err := s.DB.Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(ErrNotFound, "wallet not found")
		}
		return nil, err
	}
	return &w, nil
}

// adjustBalance applies a signed delta to a wallet inside the caller's DB
// transaction, under a row lock. A delta that would take the balance
// negative is rejected with ErrInsufficientFunds and nothing is written.
func (s *WalletService) adjustBalance(tx *gorm.DB, userID string, delta float64) (*models.Wallet, error) {
	var w models.Wallet
	if err := lockForUpdate(tx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(ErrNotFound, "wallet not found")
		}
		return nil, err
	}
	next := Round2(w.Balance + delta)
	if next < 0 {
		return nil, fail(ErrInsufficientFunds,
			fmt.Sprintf("balance %.2f is insufficient for %.2f", w.Balance, -delta))
	}
	if err := tx.Model(&w).Update("balance", next).Error; err != nil {
		return nil, err
	}
	w.Balance = next
	return &w, nil
}

// apply records a completed transaction and moves the balance by its amount,
// atomically. Callers that need more work in the same transaction (match
// settlement, subscription purchase) use adjustBalance directly instead.
func (s *WalletService) apply(txn *models.Transaction) error {
	unlock := s.locks.Lock(txn.UserID)
	defer unlock()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.adjustBalance(tx, txn.UserID, txn.Amount); err != nil {
			return err
		}
		txn.Status = models.TxCompleted
		return tx.Create(txn).Error
	})
}

// SumCompleted returns the sum of a user's completed transaction amounts,
// the reconciliation counterpart of the wallet balance.
func (s *WalletService) SumCompleted(userID string) (float64, error) {
	var total float64
	err := s.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND status = ?", userID, models.TxCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return Round2(total), err
}

// --- Handlers ---

// GetWallet returns the caller's current balance.
func (s *WalletService) GetWallet(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	w, err := s.WalletByUser(userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(w)
}

// GetTransactions lists the caller's transactions, newest first.
func (s *WalletService) GetTransactions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var txns []models.Transaction
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(200).
		Find(&txns).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(txns)
}

// Deposit creates a pending deposit that an admin later approves. The
// payment itself happens outside the platform; an optional payment
// screenshot uploads to R2 as proof.
func (s *WalletService) Deposit(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	amount, err := parseAmount(c.FormValue("amount"))
	if err != nil {
		return respondError(c, err)
	}

	txn := models.Transaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   models.TxDeposit,
		Amount: amount,
		Status: models.TxPending,
	}

	if proof, ferr := c.FormFile("screenshot"); ferr == nil && proof.Size > 0 {
		url, uerr := uploadProof(proof)
		if uerr != nil {
			log.Printf("❌ deposit proof upload failed for %s: %v", userID, uerr)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload screenshot"})
		}
		txn.ScreenshotURL = url
	}

	if err := s.DB.Create(&txn).Error; err != nil {
		return respondError(c, err)
	}
	log.Printf("💰 deposit %s pending: user=%s amount=%.2f", txn.ID, userID, amount)
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// AttachDepositProof attaches a payment screenshot to an existing pending
// deposit. Metadata attachment is the only permitted transaction mutation.
func (s *WalletService) AttachDepositProof(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	txID := c.Params("id")

	var txn models.Transaction
	if err := s.DB.Where("id = ? AND user_id = ?", txID, userID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fail(ErrNotFound, "transaction not found"))
		}
		return respondError(c, err)
	}
	if txn.Type != models.TxDeposit || txn.Status != models.TxPending {
		return respondError(c, fail(ErrInvalidState, "proof can only be attached to a pending deposit"))
	}

	proof, err := c.FormFile("screenshot")
	if err != nil || proof.Size == 0 {
		return respondError(c, fail(ErrValidation, "screenshot file is required"))
	}
	url, err := uploadProof(proof)
	if err != nil {
		log.Printf("❌ proof upload failed for tx %s: %v", txID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload screenshot"})
	}

	if err := s.DB.Model(&txn).Update("screenshot_url", url).Error; err != nil {
		return respondError(c, err)
	}
	txn.ScreenshotURL = url
	return c.JSON(txn)
}

// ApproveDeposit credits the wallet and completes the pending transaction.
// Admin only.
func (s *WalletService) ApproveDeposit(c *fiber.Ctx) error {
	txID := c.Params("id")

	var txn models.Transaction
	if err := s.DB.First(&txn, "id = ?", txID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fail(ErrNotFound, "transaction not found"))
		}
		return respondError(c, err)
	}
	if txn.Type != models.TxDeposit {
		return respondError(c, fail(ErrValidation, "not a deposit transaction"))
	}
	if txn.Status != models.TxPending {
		return respondError(c, fail(ErrInvalidState, "deposit is not pending"))
	}

	unlock := s.locks.Lock(txn.UserID)
	defer unlock()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Re-check under lock: two admins clicking approve must not double-credit.
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", txID, models.TxPending).
			Update("status", models.TxCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fail(ErrInvalidState, "deposit is not pending")
		}
		_, aerr := s.adjustBalance(tx, txn.UserID, txn.Amount)
		return aerr
	})
	if err != nil {
		return respondError(c, err)
	}

	log.Printf("✅ deposit %s approved: user=%s amount=%.2f", txID, txn.UserID, txn.Amount)
	txn.Status = models.TxCompleted
	return c.JSON(txn)
}

// Withdraw debits the wallet immediately and records a completed withdrawal.
// The banded transaction commission is withheld from the payout and carried
// on the row for audit.
func (s *WalletService) Withdraw(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}
	if req.Amount <= 0 {
		return respondError(c, fail(ErrValidation, "amount must be positive"))
	}

	fee := TransactionCommission(req.Amount)
	txn := &models.Transaction{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             models.TxWithdrawal,
		Amount:           -req.Amount,
		CommissionAmount: fee,
	}
	if err := s.apply(txn); err != nil {
		return respondError(c, err)
	}

	log.Printf("💸 withdrawal: user=%s amount=%.2f fee=%.2f", userID, req.Amount, fee)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transaction": txn,
		"payout":      Round2(req.Amount - fee),
		"fee":         fee,
	})
}

// RedeemPoints converts reward points into wallet credit.
func (s *WalletService) RedeemPoints(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Points int64 `json:"points"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}
	if req.Points < minRedeemPoints {
		return respondError(c, fail(ErrValidation,
			fmt.Sprintf("minimum redemption is %d points", minRedeemPoints)))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	credit := Round2(float64(req.Points) * pointRedeemValue)
	var txn *models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockForUpdate(tx).First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		if user.RewardPoints < req.Points {
			return fail(ErrInsufficientFunds,
				fmt.Sprintf("only %d reward points available", user.RewardPoints))
		}
		if err := tx.Model(&user).
			Update("reward_points", user.RewardPoints-req.Points).Error; err != nil {
			return err
		}
		if _, err := s.adjustBalance(tx, userID, credit); err != nil {
			return err
		}
		txn = &models.Transaction{
			ID:     uuid.NewString(),
			UserID: userID,
			Type:   models.TxRewardRedemption,
			Amount: credit,
			Status: models.TxCompleted,
			Notes:  fmt.Sprintf("%d points redeemed", req.Points),
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// AdminTransactions lists every transaction on the platform, newest first.
func (s *WalletService) AdminTransactions(c *fiber.Ctx) error {
	var txns []models.Transaction
	q := s.DB.Order("created_at DESC").Limit(500)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if txType := c.Query("type"); txType != "" {
		q = q.Where("type = ?", txType)
	}
	if err := q.Find(&txns).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(txns)
}

// Reconcile reports wallets whose balance disagrees with the sum of their
// completed transactions. Empty report means the ledger is consistent.
func (s *WalletService) Reconcile(c *fiber.Ctx) error {
	var wallets []models.Wallet
	if err := s.DB.Find(&wallets).Error; err != nil {
		return respondError(c, err)
	}

	type mismatch struct {
		UserID  string  `json:"user_id"`
		Balance float64 `json:"balance"`
		TxSum   float64 `json:"tx_sum"`
		Drift   float64 `json:"drift"`
	}
	var report []mismatch
	for _, w := range wallets {
		sum, err := s.SumCompleted(w.UserID)
		if err != nil {
			return respondError(c, err)
		}
		if Round2(w.Balance) != sum {
			report = append(report, mismatch{
				UserID:  w.UserID,
				Balance: w.Balance,
				TxSum:   sum,
				Drift:   Round2(w.Balance - sum),
			})
		}
	}
	return c.JSON(fiber.Map{
		"checked":    len(wallets),
		"mismatches": report,
		"consistent": len(report) == 0,
	})
}

func parseAmount(raw string) (float64, error) {
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || amount <= 0 {
		return 0, fail(ErrValidation, "amount must be a positive number")
	}
	return Round2(amount), nil
}

// uploadProof sends a deposit screenshot to R2 under deposits/proof/.
func uploadProof(file *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := "deposits/proof/" + uuid.NewString() + ext
	return utils.StoreFile(file, key)
}
