package models

import "time"

// Wallet holds a user's spendable balance. One per user, created at
// registration. Balance changes go through WalletService.adjustBalance only;
// the invariant balance >= 0 holds after every successful mutation.
type Wallet struct {
	ID      string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Balance float64 `gorm:"not null;default:0" json:"balance"`

	Timestamps
}

// Transaction types
const (
	TxDeposit              = "deposit"
	TxWithdrawal           = "withdrawal"
	TxGameEntry            = "game_entry"
	TxGameWin              = "game_win"
	TxSubscriptionPurchase = "subscription_purchase"
	TxSubscriptionReward   = "subscription_reward"
	TxReferralBonus        = "referral_bonus"
	TxRewardRedemption     = "reward_redemption"
)

// Transaction statuses
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
)

// Transaction is the append-only audit record of a single balance change.
// Amount is signed: debits are negative. Rows are never updated after
// creation except to attach a deposit proof screenshot, and never deleted.
// Reconciliation invariant: sum of a user's completed amounts == wallet balance.
type Transaction struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	Type   string  `gorm:"type:varchar(32);not null;index" json:"type"`
	Amount float64 `gorm:"not null" json:"amount"`
	Status string  `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	// Platform cut carried for audit on game_win rows
	CommissionAmount float64 `gorm:"default:0" json:"commission_amount,omitempty"`

	// Back-references for audit trails
	MatchID        *string `gorm:"type:uuid;index" json:"match_id,omitempty"`
	SubscriptionID *string `gorm:"type:uuid;index" json:"subscription_id,omitempty"`

	// Deposit proof, attached after creation (the only mutable field)
	ScreenshotURL string `gorm:"type:text" json:"screenshot_url,omitempty"`

	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
