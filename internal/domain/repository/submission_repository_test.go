package repository

import (
	"context"
	"testing"
	"time"
	"codebattle/internal/common"
	"codebattle/internal/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkRunningTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewPgSubmissionRepository(db)

	mock.ExpectExec("UPDATE submissions SET status").
		WithArgs(model.StatusRunning, "s1", model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkRunning(context.Background(), "s1"))

	// Zero affected rows means the submission was not PENDING.
	mock.ExpectExec("UPDATE submissions SET status").
		WithArgs(model.StatusRunning, "s1", model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.MarkRunning(context.Background(), "s1")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyVerdictOnlyFromRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewPgSubmissionRepository(db)

	judgedAt := time.Now()
	result := SubmissionResult{
		Status:          model.StatusWrongAnswer,
		TestCasesPassed: 1,
		TotalTestCases:  3,
		JudgedAt:        judgedAt,
	}

	mock.ExpectExec("UPDATE submissions SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ApplyVerdict(context.Background(), "s1", result))

	// A second verdict finds the row no longer RUNNING.
	mock.ExpectExec("UPDATE submissions SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.ApplyVerdict(context.Background(), "s1", result)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishBattleCompareAndSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewPgBattleRepository(db)

	winner := "u1"
	now := time.Now()

	mock.ExpectExec("UPDATE battles SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	won, err := repo.FinishBattle(context.Background(), "b1", &winner, now)
	require.NoError(t, err)
	assert.True(t, won)

	// The battle is already FINISHED: the second completion is a no-op.
	mock.ExpectExec("UPDATE battles SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	won, err = repo.FinishBattle(context.Background(), "b1", nil, now)
	require.NoError(t, err)
	assert.False(t, won)

	assert.NoError(t, mock.ExpectationsWereMet())
}
