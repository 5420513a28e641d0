package service

import (
	"context"
	"testing"
	"codebattle/internal/common"
	"codebattle/internal/common/security"
	"codebattle/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsInitialRating(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse",
	})

	require.NoError(t, err)
	assert.Equal(t, initialRatingScore, resp.User.RatingScore)
	assert.Equal(t, model.RolePlayer, resp.User.Role)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "short",
	})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "correct-horse",
	})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestLoginByEmailAndUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo)
	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)

	byEmail, err := svc.Login(context.Background(), LoginRequest{LoginField: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "alice", byEmail.User.Username)
	assert.NotNil(t, byEmail.User.LastLoginAt)

	byUsername, err := svc.Login(context.Background(), LoginRequest{LoginField: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, byEmail.User.ID, byUsername.User.ID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{LoginField: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.Login(context.Background(), LoginRequest{LoginField: "nobody", Password: "correct-horse"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestRefreshIssuesNewTokenPair(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	registered, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{RefreshToken: registered.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, refreshed.User.ID)
	assert.NotEmpty(t, refreshed.Token)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	registered, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)

	// An access token lacks the refresh claim.
	token, err := security.GenerateToken(registered.User.ID, "alice", model.RolePlayer)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), RefreshRequest{RefreshToken: token})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}
