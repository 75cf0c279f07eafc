package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/tictactoe/internal/models"
	"github.com/Skotchmaster/tictactoe/internal/testdb"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	return New(testdb.Open(t))
}

func refreshRecord(userID uint, createdAt time.Time, ttl time.Duration) *models.RefreshToken {
	return &models.RefreshToken{
		JTI:       uuid.NewString(),
		SessionID: uuid.NewString(),
		UserID:    userID,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
	}
}

func TestSha256Hex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sha256Hex(""))
	assert.Len(t, Sha256Hex("token"), 64)
	assert.NotEqual(t, Sha256Hex("a"), Sha256Hex("b"))
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	require.NoError(t, r.Migrate(context.Background()))
	require.NoError(t, r.Migrate(context.Background()))
}

func TestSaveRefresh_FindAndDuplicate(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := refreshRecord(1, now, 7*24*time.Hour)
	require.NoError(t, r.SaveRefresh(ctx, "refresh-1", rec))
	assert.Equal(t, Sha256Hex("refresh-1"), rec.TokenHash)

	got, err := r.FindRefresh(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, rec.JTI, got.JTI)
	assert.Equal(t, rec.SessionID, got.SessionID)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

	var raw int64
	require.NoError(t, r.DB.Model(&models.RefreshToken{}).Where("token_hash = ?", "refresh-1").Count(&raw).Error)
	assert.Zero(t, raw)

	dup := refreshRecord(1, now, time.Hour)
	err = r.SaveRefresh(ctx, "refresh-1", dup)
	require.ErrorIs(t, err, ErrDuplicateToken)

	sameJTI := refreshRecord(1, now, time.Hour)
	sameJTI.JTI = rec.JTI
	err = r.SaveRefresh(ctx, "refresh-2", sameJTI)
	require.ErrorIs(t, err, ErrDuplicateToken)
}

func TestSaveRefresh_RejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.ErrorIs(t, r.SaveRefresh(ctx, "tok", refreshRecord(1, now, -time.Second)), ErrInvalidRecord)
	require.ErrorIs(t, r.SaveRefresh(ctx, "", refreshRecord(1, now, time.Hour)), ErrInvalidRecord)
	require.ErrorIs(t, r.SaveRefresh(ctx, "tok", nil), ErrInvalidRecord)

	_, err := r.FindRefresh(ctx, "tok")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRefresh_Idempotent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SaveRefresh(ctx, "tok", refreshRecord(1, time.Now().UTC(), time.Hour)))
	require.NoError(t, r.DeleteRefresh(ctx, "tok"))
	require.NoError(t, r.DeleteRefresh(ctx, "tok"))

	_, err := r.FindRefresh(ctx, "tok")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := refreshRecord(1, now, time.Hour)
	b := refreshRecord(1, now, time.Hour)
	require.NoError(t, r.SaveRefresh(ctx, "tok-a", a))
	require.NoError(t, r.SaveRefresh(ctx, "tok-b", b))

	n, err := r.DeleteSession(ctx, a.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = r.DeleteSession(ctx, a.SessionID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.FindRefresh(ctx, "tok-a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindRefresh(ctx, "tok-b")
	require.NoError(t, err)
}

func TestRotateRefresh(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := refreshRecord(1, now, time.Hour)
	require.NoError(t, r.SaveRefresh(ctx, "old", old))

	next := refreshRecord(1, now, time.Hour)
	next.SessionID = old.SessionID
	require.NoError(t, r.RotateRefresh(ctx, "old", "new", next))

	_, err := r.FindRefresh(ctx, "old")
	require.ErrorIs(t, err, ErrNotFound)
	got, err := r.FindRefresh(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, old.SessionID, got.SessionID)

	// the old token is gone, so a replay cannot rotate again
	err = r.RotateRefresh(ctx, "old", "newer", refreshRecord(1, now, time.Hour))
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindRefresh(ctx, "newer")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRotateRefresh_DuplicateRollsBack(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, r.SaveRefresh(ctx, "old", refreshRecord(1, now, time.Hour)))
	require.NoError(t, r.SaveRefresh(ctx, "taken", refreshRecord(1, now, time.Hour)))

	err := r.RotateRefresh(ctx, "old", "taken", refreshRecord(1, now, time.Hour))
	require.ErrorIs(t, err, ErrDuplicateToken)

	_, err = r.FindRefresh(ctx, "old")
	require.NoError(t, err, "old record must survive a failed rotation")
}

func TestRotateRefresh_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, r.SaveRefresh(ctx, "old", refreshRecord(1, now, time.Hour)))

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			errs <- r.RotateRefresh(ctx, "old", uuid.NewString(), refreshRecord(1, now, time.Hour))
		}()
	}

	var won, lost int
	for i := 0; i < workers; i++ {
		err := <-errs
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrNotFound):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, workers-1, lost)
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	grace := 24 * time.Hour

	// expired 2 days ago: swept
	require.NoError(t, r.SaveRefresh(ctx, "stale", refreshRecord(1, now.Add(-9*24*time.Hour), 7*24*time.Hour)))
	// expired 1 hour ago: still inside the grace window
	require.NoError(t, r.SaveRefresh(ctx, "recent", refreshRecord(1, now.Add(-2*time.Hour), time.Hour)))
	// live
	require.NoError(t, r.SaveRefresh(ctx, "live", refreshRecord(1, now, time.Hour)))

	n, err := r.SweepExpired(ctx, now, grace)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.FindRefresh(ctx, "stale")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindRefresh(ctx, "recent")
	require.NoError(t, err)
	_, err = r.FindRefresh(ctx, "live")
	require.NoError(t, err)
}

func TestSweepExpired_ConcurrentWithInserts(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const n = 20
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			done <- r.SaveRefresh(ctx, uuid.NewString(), refreshRecord(1, now, time.Hour))
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := r.SweepExpired(ctx, now, 0)
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}

	var count int64
	require.NoError(t, r.DB.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.EqualValues(t, n, count, "sweep must not remove live records")
}

func TestMarkRevoked(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	exp := time.Now().Add(15 * time.Minute)

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.MarkRevoked(ctx, "jti-1", "sid-1", exp))
	require.NoError(t, r.MarkRevoked(ctx, "jti-1", "sid-1", exp))

	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	var count int64
	require.NoError(t, r.DB.Model(&models.RevokedToken{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	require.ErrorIs(t, r.MarkRevoked(ctx, "", "sid", exp), ErrInvalidRecord)
}

func TestRevokeSession(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := refreshRecord(1, now, time.Hour)
	b := refreshRecord(1, now, time.Hour)
	require.NoError(t, r.SaveRefresh(ctx, "tok-a", a))
	require.NoError(t, r.SaveRefresh(ctx, "tok-b", b))

	n, err := r.RevokeSession(ctx, "jti-a", a.SessionID, now.Add(15*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.FindRefresh(ctx, "tok-a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindRefresh(ctx, "tok-b")
	require.NoError(t, err)
	revoked, err := r.IsRevoked(ctx, "jti-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err = r.RevokeSession(ctx, "jti-a", a.SessionID, now.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.RevokeSession(ctx, "", a.SessionID, now)
	require.ErrorIs(t, err, ErrInvalidRecord)
	_, err = r.RevokeSession(ctx, "jti-x", "", now)
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestRevokeSession_RollsBackWhenMarkerFails(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := refreshRecord(1, now, time.Hour)
	require.NoError(t, r.SaveRefresh(ctx, "tok", rec))
	require.NoError(t, r.DB.Migrator().DropTable(&models.RevokedToken{}))

	_, err := r.RevokeSession(ctx, "jti-1", rec.SessionID, now.Add(15*time.Minute))
	require.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = r.FindRefresh(ctx, "tok")
	require.NoError(t, err, "refresh record survives the failed revocation")
}

func TestSweepRevoked(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.MarkRevoked(ctx, "old", "s1", now.Add(-48*time.Hour)))
	require.NoError(t, r.MarkRevoked(ctx, "fresh", "s2", now.Add(-time.Hour)))

	n, err := r.SweepRevoked(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	revoked, err := r.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)
	revoked, err = r.IsRevoked(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	gdb := testdb.Open(t)
	r := New(gdb)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = r.FindRefresh(context.Background(), "tok")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	_, err = r.IsRevoked(context.Background(), "jti")
	require.ErrorIs(t, err, ErrStorageUnavailable)
}
