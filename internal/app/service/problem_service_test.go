package service

import (
	"context"
	"testing"
	"codebattle/internal/common"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProblemTestEnv(t *testing.T) (*ProblemService, *fakeProblemRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := newFakeProblemRepo()
	return NewProblemService(repo, db), repo, mock
}

func validProblemRequest() UpsertProblemRequest {
	return UpsertProblemRequest{
		Title:       "Two Sum Duel",
		Description: "Find two numbers adding to target.",
		Difficulty:  "Easy",
		TestCases: []TestCaseInput{
			{Input: "1 2 3", ExpectedOutput: "0 1", IsHidden: false},
			{Input: "4 5 6", ExpectedOutput: "1 2", IsHidden: true},
		},
	}
}

func TestCreateProblemSlugAndDefaults(t *testing.T) {
	svc, _, mock := newProblemTestEnv(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	problem, err := svc.CreateProblem(context.Background(), validProblemRequest())

	require.NoError(t, err)
	assert.Equal(t, "two-sum-duel", problem.Slug)
	assert.Equal(t, 2000, problem.TimeLimitMs)
	assert.Equal(t, 65536, problem.MemoryLimitKb)
	require.Len(t, problem.TestCases, 2)
	assert.Equal(t, 0, problem.TestCases[0].OrderIndex)
	assert.Equal(t, 1, problem.TestCases[1].OrderIndex)
}

func TestCreateProblemValidation(t *testing.T) {
	svc, _, _ := newProblemTestEnv(t)

	req := validProblemRequest()
	req.Difficulty = "Impossible"
	_, err := svc.CreateProblem(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrValidation)

	req = validProblemRequest()
	req.TestCases = nil
	_, err = svc.CreateProblem(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestGetProblemStripsHiddenCasesForPlayers(t *testing.T) {
	svc, _, mock := newProblemTestEnv(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	created, err := svc.CreateProblem(context.Background(), validProblemRequest())
	require.NoError(t, err)

	asPlayer, err := svc.GetProblem(context.Background(), created.ID, false)
	require.NoError(t, err)
	require.Len(t, asPlayer.TestCases, 1)
	assert.False(t, asPlayer.TestCases[0].IsHidden)

	asAdmin, err := svc.GetProblem(context.Background(), created.ID, true)
	require.NoError(t, err)
	assert.Len(t, asAdmin.TestCases, 2)
}

func TestGetProblemBySlugFallback(t *testing.T) {
	svc, _, mock := newProblemTestEnv(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.CreateProblem(context.Background(), validProblemRequest())
	require.NoError(t, err)

	bySlug, err := svc.GetProblem(context.Background(), "two-sum-duel", false)
	require.NoError(t, err)
	assert.Equal(t, "Two Sum Duel", bySlug.Title)
}
