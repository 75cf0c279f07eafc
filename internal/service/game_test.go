package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/tictactoe/internal/models"
	"github.com/Skotchmaster/tictactoe/internal/tokens"
)

func claimsFor(username string) *tokens.Claims {
	return &tokens.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: username}}
}

func (e *testEnv) games() *GameService {
	return &GameService{Users: e.repo, Store: e.repo}
}

func TestGameService_Record(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	svc := env.games()

	game := &models.Game{Player1ID: alice.ID, Player2ID: bob.ID, Player1Score: 3, Result: models.ResultPlayer1}
	require.NoError(t, svc.Record(ctx, claimsFor("alice"), game))
	assert.NotZero(t, game.ID)

	// either player may report
	require.NoError(t, svc.Record(ctx, claimsFor("bob"), &models.Game{
		Player1ID: alice.ID, Player2ID: bob.ID, Result: models.ResultDraw,
	}))

	a, err := env.repo.FindUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 1, a.Draws)
	b, err := env.repo.FindUserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Losses)
	assert.Equal(t, 1, b.Draws)
}

func TestGameService_RecordRejects(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	env.seedUser(t, "carol")
	svc := env.games()

	tests := []struct {
		name    string
		caller  *tokens.Claims
		game    models.Game
		wantErr error
	}{
		{name: "same player", caller: claimsFor("alice"), game: models.Game{Player1ID: alice.ID, Player2ID: alice.ID, Result: models.ResultDraw}, wantErr: ErrValidation},
		{name: "missing player", caller: claimsFor("alice"), game: models.Game{Player1ID: alice.ID, Result: models.ResultDraw}, wantErr: ErrValidation},
		{name: "bad result", caller: claimsFor("alice"), game: models.Game{Player1ID: alice.ID, Player2ID: bob.ID, Result: "forfeit"}, wantErr: ErrValidation},
		{name: "negative score", caller: claimsFor("alice"), game: models.Game{Player1ID: alice.ID, Player2ID: bob.ID, Player1Score: -1, Result: models.ResultDraw}, wantErr: ErrValidation},
		{name: "unknown player", caller: claimsFor("alice"), game: models.Game{Player1ID: alice.ID, Player2ID: 999, Result: models.ResultDraw}, wantErr: ErrUserNotFound},
		{name: "outsider", caller: claimsFor("carol"), game: models.Game{Player1ID: alice.ID, Player2ID: bob.ID, Result: models.ResultPlayer1}, wantErr: ErrForbidden},
		{name: "unknown caller", caller: claimsFor("ghost"), game: models.Game{Player1ID: alice.ID, Player2ID: bob.ID, Result: models.ResultPlayer1}, wantErr: ErrUnauthenticated},
		{name: "no subject", caller: &tokens.Claims{}, game: models.Game{Player1ID: alice.ID, Player2ID: bob.ID, Result: models.ResultPlayer1}, wantErr: ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := tt.game
			require.ErrorIs(t, svc.Record(ctx, tt.caller, &game), tt.wantErr)
		})
	}

	assert.Zero(t, env.count(t, &models.Game{}))
	a, err := env.repo.FindUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, a.Wins)
}

func TestGameService_History(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	env.seedUser(t, "carol")
	svc := env.games()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, claimsFor("alice"), &models.Game{Player1ID: alice.ID, Player2ID: bob.ID, Result: models.ResultDraw}))
	}

	page, err := svc.History(ctx, claimsFor("alice"), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.Size)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Games, 3)

	page, err = svc.History(ctx, claimsFor("alice"), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Games, 1)

	page, err = svc.History(ctx, claimsFor("carol"), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Games)

	_, err = svc.History(ctx, &tokens.Claims{}, 1, 10)
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.History(ctx, claimsFor("ghost"), 1, 10)
	require.ErrorIs(t, err, ErrUnauthenticated)
}
