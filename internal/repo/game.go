package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/tictactoe/internal/models"
)

// CreateGame stores g and bumps the win/loss/draw counters of both players
// in the same transaction.
func (r *GormRepo) CreateGame(ctx context.Context, g *models.Game) error {
	var p1, p2 string
	switch g.Result {
	case models.ResultPlayer1:
		p1, p2 = "wins", "losses"
	case models.ResultPlayer2:
		p1, p2 = "losses", "wins"
	case models.ResultDraw:
		p1, p2 = "draws", "draws"
	default:
		return ErrInvalidRecord
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpStat(tx, g.Player1ID, p1); err != nil {
			return err
		}
		if err := bumpStat(tx, g.Player2ID, p2); err != nil {
			return err
		}
		if err := tx.Create(g).Error; err != nil {
			return storageErr(err)
		}
		return nil
	})
}

func bumpStat(tx *gorm.DB, userID uint, column string) error {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn(column, gorm.Expr(fmt.Sprintf("%s + 1", column)))
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PageBounds turns a 1-based page and a page size into offset and limit.
// A page below 1 becomes 1, a non-positive size becomes the default and a
// size above the maximum is clamped to it.
func PageBounds(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return (page - 1) * size, size
}

// ListGames returns the games userID played in, newest first, and the total
// number of such games.
func (r *GormRepo) ListGames(ctx context.Context, userID uint, page, size int) ([]models.Game, int64, error) {
	offset, limit := PageBounds(page, size)
	played := func() *gorm.DB {
		return r.DB.WithContext(ctx).Model(&models.Game{}).
			Where("player1_id = ? OR player2_id = ?", userID, userID)
	}

	var total int64
	if err := played().Count(&total).Error; err != nil {
		return nil, 0, storageErr(err)
	}

	games := make([]models.Game, 0, limit)
	err := played().Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, 0, storageErr(err)
	}
	return games, total, nil
}
