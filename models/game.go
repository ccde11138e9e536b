package models

// Game is a catalog entry for a playable title. Static reference data,
// managed by admins, rarely mutated.
type Game struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `json:"description,omitempty"`
	LogoURL     string `gorm:"type:text" json:"logo_url,omitempty"`

	// Allowed entry-fee range for matches of this game
	MinEntry float64 `gorm:"not null" json:"min_entry"`
	MaxEntry float64 `gorm:"not null" json:"max_entry"`

	// Platform cut of the prize pool, percent (e.g. 10 = 10%)
	CommissionPct float64 `gorm:"not null;default:10" json:"commission_pct"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	Timestamps
}

// DefaultGames seeds the catalog on first boot (same static-config shape as
// the subscription plan table).
var DefaultGames = []Game{
	{Name: "Ludo Classic", Slug: "ludo-classic", Description: "Four-token race board game", MinEntry: 10, MaxEntry: 2000, CommissionPct: 10},
	{Name: "Rummy", Slug: "rummy", Description: "13-card draw and discard", MinEntry: 25, MaxEntry: 5000, CommissionPct: 12},
	{Name: "Snakes & Ladders", Slug: "snakes-ladders", Description: "Roll and climb", MinEntry: 5, MaxEntry: 500, CommissionPct: 8},
}
