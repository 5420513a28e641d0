package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"codebattle/internal/common"
	"codebattle/internal/domain/model"
)

// SubmissionResult carries the terminal fields of a judged submission. It is
// written once by ApplyVerdict and never updated afterwards.
type SubmissionResult struct {
	Status          model.SubmissionStatus
	TestCasesPassed int
	TotalTestCases  int
	ExecutionTimeMs *int
	MemoryUsedKb    *int
	ErrorMessage    *string
	JudgedAt        time.Time
}

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, submission *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)

	// MarkRunning atomically transitions PENDING -> RUNNING. A submission not
	// in PENDING yields ErrInvalidTransition.
	MarkRunning(ctx context.Context, id string) error
	// ApplyVerdict atomically transitions RUNNING -> a terminal status. A
	// submission not in RUNNING yields ErrInvalidTransition, which keeps
	// terminal verdicts immutable.
	ApplyVerdict(ctx context.Context, id string, result SubmissionResult) error

	ListByBattle(ctx context.Context, battleID string) ([]model.Submission, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error)
	ListByBattleAndUser(ctx context.Context, battleID, userID string) ([]model.Submission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	query := `INSERT INTO submissions (id, battle_id, user_id, language, code, status, total_test_cases, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, s.ID, s.BattleID, s.UserID, s.Language, s.Code, s.Status, s.TotalTestCases, s.SubmittedAt)
	} else {
		_, err = r.db.ExecContext(ctx, query, s.ID, s.BattleID, s.UserID, s.Language, s.Code, s.Status, s.TotalTestCases, s.SubmittedAt)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

const submissionColumns = `id, battle_id, user_id, language, code, status, execution_time_ms, memory_used_kb,
	test_cases_passed, total_test_cases, error_message, submitted_at, judged_at`

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	s := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.BattleID, &s.UserID, &s.Language, &s.Code, &s.Status, &s.ExecutionTimeMs, &s.MemoryUsedKb,
		&s.TestCasesPassed, &s.TotalTestCases, &s.ErrorMessage, &s.SubmittedAt, &s.JudgedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) MarkRunning(ctx context.Context, id string) error {
	query := `UPDATE submissions SET status = $1 WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, model.StatusRunning, id, model.StatusPending)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.MarkRunning: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.MarkRunning rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission %s is not PENDING: %w", id, common.ErrInvalidTransition)
	}
	return nil
}

func (r *pgSubmissionRepository) ApplyVerdict(ctx context.Context, id string, result SubmissionResult) error {
	query := `UPDATE submissions SET
	            status = $1, test_cases_passed = $2, total_test_cases = $3,
	            execution_time_ms = $4, memory_used_kb = $5, error_message = $6, judged_at = $7
	          WHERE id = $8 AND status = $9`
	res, err := r.db.ExecContext(ctx, query,
		result.Status, result.TestCasesPassed, result.TotalTestCases,
		result.ExecutionTimeMs, result.MemoryUsedKb, result.ErrorMessage, result.JudgedAt,
		id, model.StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.ApplyVerdict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.ApplyVerdict rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission %s is not RUNNING: %w", id, common.ErrInvalidTransition)
	}
	return nil
}

func (r *pgSubmissionRepository) ListByBattle(ctx context.Context, battleID string) ([]model.Submission, error) {
	query := `SELECT s.id, s.battle_id, s.user_id, s.language, s.status, s.execution_time_ms, s.memory_used_kb,
	            s.test_cases_passed, s.total_test_cases, s.error_message, s.submitted_at, s.judged_at, u.username
	          FROM submissions s
	          JOIN users u ON s.user_id = u.id
	          WHERE s.battle_id = $1 ORDER BY s.submitted_at DESC`
	return r.list(ctx, query, battleID)
}

func (r *pgSubmissionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error) {
	query := `SELECT s.id, s.battle_id, s.user_id, s.language, s.status, s.execution_time_ms, s.memory_used_kb,
	            s.test_cases_passed, s.total_test_cases, s.error_message, s.submitted_at, s.judged_at, u.username
	          FROM submissions s
	          JOIN users u ON s.user_id = u.id
	          WHERE s.user_id = $1 ORDER BY s.submitted_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, userID, limit, offset)
}

func (r *pgSubmissionRepository) ListByBattleAndUser(ctx context.Context, battleID, userID string) ([]model.Submission, error) {
	query := `SELECT s.id, s.battle_id, s.user_id, s.language, s.status, s.execution_time_ms, s.memory_used_kb,
	            s.test_cases_passed, s.total_test_cases, s.error_message, s.submitted_at, s.judged_at, u.username
	          FROM submissions s
	          JOIN users u ON s.user_id = u.id
	          WHERE s.battle_id = $1 AND s.user_id = $2 ORDER BY s.submitted_at DESC`
	return r.list(ctx, query, battleID, userID)
}

// list scans listing rows, which never include the code column.
func (r *pgSubmissionRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.list: %w", err)
	}
	defer rows.Close()

	var submissions []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.BattleID, &s.UserID, &s.Language, &s.Status, &s.ExecutionTimeMs, &s.MemoryUsedKb,
			&s.TestCasesPassed, &s.TotalTestCases, &s.ErrorMessage, &s.SubmittedAt, &s.JudgedAt, &s.Username); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.list scan: %w", err)
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}
