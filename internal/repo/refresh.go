package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/tictactoe/internal/models"
)

// SaveRefresh persists rec under the hash of token.
func (r *GormRepo) SaveRefresh(ctx context.Context, token string, rec *models.RefreshToken) error {
	if err := prepareRefresh(token, rec); err != nil {
		return err
	}
	return createRefresh(r.DB.WithContext(ctx), rec)
}

func (r *GormRepo) FindRefresh(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	err := r.DB.WithContext(ctx).Where("token_hash = ?", Sha256Hex(token)).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr(err)
	}
	return &rec, nil
}

// DeleteRefresh is idempotent.
func (r *GormRepo) DeleteRefresh(ctx context.Context, token string) error {
	err := r.DB.WithContext(ctx).
		Where("token_hash = ?", Sha256Hex(token)).
		Delete(&models.RefreshToken{}).Error
	return storageErr(err)
}

// DeleteSession drops the refresh record bound to sessionID. Deleting an
// unknown session is not an error.
func (r *GormRepo) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	n, err := deleteSession(r.DB.WithContext(ctx), sessionID)
	return n, storageErr(err)
}

func deleteSession(db *gorm.DB, sessionID string) (int64, error) {
	res := db.Where("session_id = ?", sessionID).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// RotateRefresh replaces oldToken by next in one transaction. When two
// callers race on the same old token only one delete hits a row; the other
// gets ErrNotFound.
func (r *GormRepo) RotateRefresh(ctx context.Context, oldToken, nextToken string, next *models.RefreshToken) error {
	if err := prepareRefresh(nextToken, next); err != nil {
		return err
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("token_hash = ?", Sha256Hex(oldToken)).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrNotFound
		}
		return createRefresh(tx, next)
	})
}

// SweepExpired deletes refresh records that expired more than grace ago.
func (r *GormRepo) SweepExpired(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at < ?", now.UTC().Add(-grace)).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, storageErr(res.Error)
}

func prepareRefresh(token string, rec *models.RefreshToken) error {
	if token == "" || rec == nil {
		return ErrInvalidRecord
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	if rec.ExpiresAt.Before(rec.CreatedAt) {
		return ErrInvalidRecord
	}
	rec.TokenHash = Sha256Hex(token)
	return nil
}

func createRefresh(db *gorm.DB, rec *models.RefreshToken) error {
	if err := db.Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateToken
		}
		return storageErr(err)
	}
	return nil
}
