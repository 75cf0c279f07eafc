package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/tictactoe/internal/models"
)

// MarkRevoked records jti as revoked until expiresAt. Marking twice is a no-op.
func (r *GormRepo) MarkRevoked(ctx context.Context, jti, sessionID string, expiresAt time.Time) error {
	if jti == "" {
		return ErrInvalidRecord
	}
	return storageErr(markRevoked(r.DB.WithContext(ctx), jti, sessionID, expiresAt))
}

// RevokeSession deletes the refresh records of sessionID and marks jti as
// revoked in one transaction. Either both writes land or neither does.
func (r *GormRepo) RevokeSession(ctx context.Context, jti, sessionID string, expiresAt time.Time) (int64, error) {
	if jti == "" || sessionID == "" {
		return 0, ErrInvalidRecord
	}

	var deleted int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteSession(tx, sessionID)
		if err != nil {
			return err
		}
		deleted = n
		return markRevoked(tx, jti, sessionID, expiresAt)
	})
	if err != nil {
		return 0, storageErr(err)
	}
	return deleted, nil
}

func (r *GormRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error
	if err != nil {
		return false, storageErr(err)
	}
	return count > 0, nil
}

func (r *GormRepo) SweepRevoked(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at < ?", now.UTC().Add(-grace)).
		Delete(&models.RevokedToken{})
	return res.RowsAffected, storageErr(res.Error)
}

func markRevoked(db *gorm.DB, jti, sessionID string, expiresAt time.Time) error {
	marker := models.RevokedToken{
		JTI:       jti,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	return db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&marker).Error
}
