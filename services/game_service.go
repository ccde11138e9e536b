package services

import (
	"errors"
	"path/filepath"
	"strconv"

	"game-arena-system/models"
	"game-arena-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// GameService manages the playable catalog. Entry ranges and commission
// percentages live here; everything money-facing reads them at match time.
type GameService struct {
	DB *gorm.DB
}

func NewGameService(db *gorm.DB) *GameService {
	return &GameService{DB: db}
}

// SeedDefaultGames inserts the launch catalog if the table is empty.
func (s *GameService) SeedDefaultGames() error {
	var count int64
	if err := s.DB.Model(&models.Game{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i := range models.DefaultGames {
		g := models.DefaultGames[i]
		g.ID = uuid.NewString()
		g.Slug = slug.Make(g.Name)
		g.IsActive = true
		if err := s.DB.Create(&g).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetGames returns the active catalog.
func (s *GameService) GetGames(c *fiber.Ctx) error {
	var games []models.Game
	if err := s.DB.Where("is_active = ?", true).Order("name ASC").Find(&games).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(games)
}

// GetGame returns a single game; the param can be an id or a slug.
func (s *GameService) GetGame(c *fiber.Ctx) error {
	key := c.Params("id")
	var game models.Game
	err := s.DB.Where("id = ? OR slug = ?", key, key).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fail(ErrNotFound, "game not found"))
		}
		return respondError(c, err)
	}
	return c.JSON(game)
}

// CreateGame handles POST /admin/games. Multipart form so the logo can be
// uploaded in the same request.
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	name := c.FormValue("name")
	if name == "" {
		return respondError(c, fail(ErrValidation, "name is required"))
	}
	minEntry, err := strconv.ParseFloat(c.FormValue("min_entry", "10"), 64)
	if err != nil || minEntry <= 0 {
		return respondError(c, fail(ErrValidation, "min_entry must be a positive number"))
	}
	maxEntry, err := strconv.ParseFloat(c.FormValue("max_entry", "1000"), 64)
	if err != nil || maxEntry < minEntry {
		return respondError(c, fail(ErrValidation, "max_entry must be >= min_entry"))
	}
	commissionPct, err := strconv.ParseFloat(c.FormValue("commission_pct", "10"), 64)
	if err != nil || commissionPct < 0 || commissionPct > 50 {
		return respondError(c, fail(ErrValidation, "commission_pct must be between 0 and 50"))
	}

	game := &models.Game{
		ID:            uuid.NewString(),
		Name:          name,
		Slug:          slug.Make(name),
		Description:   c.FormValue("description"),
		MinEntry:      minEntry,
		MaxEntry:      maxEntry,
		CommissionPct: commissionPct,
		IsActive:      true,
	}

	if logoFile, err := c.FormFile("logo"); err == nil && logoFile.Size > 0 {
		logoExt := filepath.Ext(logoFile.Filename)
		if logoExt == "" {
			logoExt = ".png"
		}
		logoKey := "logos/" + uuid.NewString() + logoExt
		logoURL, err := utils.StoreFile(logoFile, logoKey)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "failed to upload logo"})
		}
		game.LogoURL = logoURL
	}

	if err := s.DB.Create(game).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(game)
}

// UpdateGame handles PUT /admin/games/:id.
func (s *GameService) UpdateGame(c *fiber.Ctx) error {
	var game models.Game
	if err := s.DB.First(&game, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fail(ErrNotFound, "game not found"))
		}
		return respondError(c, err)
	}

	if name := c.FormValue("name"); name != "" {
		game.Name = name
		game.Slug = slug.Make(name)
	}
	if desc := c.FormValue("description"); desc != "" {
		game.Description = desc
	}
	if raw := c.FormValue("min_entry"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return respondError(c, fail(ErrValidation, "min_entry must be a positive number"))
		}
		game.MinEntry = v
	}
	if raw := c.FormValue("max_entry"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < game.MinEntry {
			return respondError(c, fail(ErrValidation, "max_entry must be >= min_entry"))
		}
		game.MaxEntry = v
	}
	if raw := c.FormValue("commission_pct"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 50 {
			return respondError(c, fail(ErrValidation, "commission_pct must be between 0 and 50"))
		}
		game.CommissionPct = v
	}
	if raw := c.FormValue("is_active"); raw != "" {
		game.IsActive = raw == "true" || raw == "1"
	}

	if logoFile, err := c.FormFile("logo"); err == nil && logoFile.Size > 0 {
		logoExt := filepath.Ext(logoFile.Filename)
		if logoExt == "" {
			logoExt = ".png"
		}
		logoKey := "logos/" + uuid.NewString() + logoExt
		logoURL, err := utils.StoreFile(logoFile, logoKey)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "failed to upload updated logo"})
		}
		game.LogoURL = logoURL
	}

	if err := s.DB.Save(&game).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(game)
}
