package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"codebattle/internal/common"
	"codebattle/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type BattleRepository interface {
	CreateBattle(ctx context.Context, tx *sql.Tx, battle *model.Battle) error
	FindBattleByID(ctx context.Context, id string) (*model.Battle, error)
	FindBattleByRoomCode(ctx context.Context, roomCode string) (*model.Battle, error)
	ListBattlesByStatus(ctx context.Context, status model.BattleStatus, limit, offset int) ([]model.Battle, error)

	AddParticipant(ctx context.Context, tx *sql.Tx, participant *model.BattleParticipant) error
	GetParticipant(ctx context.Context, battleID, userID string) (*model.BattleParticipant, error)
	GetParticipantsByBattleID(ctx context.Context, battleID string) ([]model.BattleParticipant, error)
	SetParticipantReady(ctx context.Context, battleID, userID string, ready bool) error
	MarkParticipantSubmitted(ctx context.Context, tx *sql.Tx, battleID, userID string) error
	SetParticipantScore(ctx context.Context, battleID, userID string, score int) error

	// StartBattle atomically transitions WAITING -> IN_PROGRESS. Returns false
	// when the battle was not in WAITING (someone else already started it).
	StartBattle(ctx context.Context, battleID string, startedAt time.Time) (bool, error)
	// FinishBattle atomically transitions IN_PROGRESS -> FINISHED, recording
	// the winner (nil for a timeout/draw). Returns false when the battle was
	// no longer IN_PROGRESS; callers must treat that as "someone won first".
	FinishBattle(ctx context.Context, battleID string, winnerID *string, finishedAt time.Time) (bool, error)
}

type pgBattleRepository struct {
	db *sql.DB
}

func NewPgBattleRepository(db *sql.DB) BattleRepository {
	return &pgBattleRepository{db: db}
}

func (r *pgBattleRepository) CreateBattle(ctx context.Context, tx *sql.Tx, b *model.Battle) error {
	query := `INSERT INTO battles (id, room_code, problem_id, status, max_participants, duration_seconds, is_private)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, b.ID, b.RoomCode, b.ProblemID, b.Status, b.MaxParticipants, b.DurationSeconds, b.IsPrivate)
	} else {
		_, err = r.db.ExecContext(ctx, query, b.ID, b.RoomCode, b.ProblemID, b.Status, b.MaxParticipants, b.DurationSeconds, b.IsPrivate)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique room code
			return fmt.Errorf("battle with this room code already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgBattleRepository.CreateBattle: %w", err)
	}
	return nil
}

const battleColumns = `id, room_code, problem_id, status, max_participants, duration_seconds, is_private, winner_id, created_at, started_at, finished_at`

func (r *pgBattleRepository) FindBattleByID(ctx context.Context, id string) (*model.Battle, error) {
	return r.findOne(ctx, `SELECT `+battleColumns+` FROM battles WHERE id = $1`, id)
}

func (r *pgBattleRepository) FindBattleByRoomCode(ctx context.Context, roomCode string) (*model.Battle, error) {
	return r.findOne(ctx, `SELECT `+battleColumns+` FROM battles WHERE room_code = $1`, roomCode)
}

func (r *pgBattleRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.Battle, error) {
	b := &model.Battle{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&b.ID, &b.RoomCode, &b.ProblemID, &b.Status, &b.MaxParticipants, &b.DurationSeconds,
		&b.IsPrivate, &b.WinnerID, &b.CreatedAt, &b.StartedAt, &b.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgBattleRepository.findOne: %w", err)
	}
	return b, nil
}

func (r *pgBattleRepository) ListBattlesByStatus(ctx context.Context, status model.BattleStatus, limit, offset int) ([]model.Battle, error) {
	query := `SELECT ` + battleColumns + ` FROM battles WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pgBattleRepository.ListBattlesByStatus: %w", err)
	}
	defer rows.Close()

	var battles []model.Battle
	for rows.Next() {
		var b model.Battle
		if err := rows.Scan(&b.ID, &b.RoomCode, &b.ProblemID, &b.Status, &b.MaxParticipants, &b.DurationSeconds,
			&b.IsPrivate, &b.WinnerID, &b.CreatedAt, &b.StartedAt, &b.FinishedAt); err != nil {
			return nil, fmt.Errorf("pgBattleRepository.ListBattlesByStatus scan: %w", err)
		}
		battles = append(battles, b)
	}
	return battles, rows.Err()
}

func (r *pgBattleRepository) AddParticipant(ctx context.Context, tx *sql.Tx, p *model.BattleParticipant) error {
	query := `INSERT INTO battle_participants (id, battle_id, user_id, is_ready, has_submitted, score)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, p.ID, p.BattleID, p.UserID, p.IsReady, p.HasSubmitted, p.Score)
	} else {
		_, err = r.db.ExecContext(ctx, query, p.ID, p.BattleID, p.UserID, p.IsReady, p.HasSubmitted, p.Score)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique (battle_id, user_id)
			return fmt.Errorf("user already joined this battle: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgBattleRepository.AddParticipant: %w", err)
	}
	return nil
}

const participantColumns = `id, battle_id, user_id, is_ready, has_submitted, score, joined_at`

func (r *pgBattleRepository) GetParticipant(ctx context.Context, battleID, userID string) (*model.BattleParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM battle_participants WHERE battle_id = $1 AND user_id = $2`
	p := &model.BattleParticipant{}
	err := r.db.QueryRowContext(ctx, query, battleID, userID).Scan(
		&p.ID, &p.BattleID, &p.UserID, &p.IsReady, &p.HasSubmitted, &p.Score, &p.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgBattleRepository.GetParticipant: %w", err)
	}
	return p, nil
}

func (r *pgBattleRepository) GetParticipantsByBattleID(ctx context.Context, battleID string) ([]model.BattleParticipant, error) {
	query := `SELECT p.id, p.battle_id, p.user_id, p.is_ready, p.has_submitted, p.score, p.joined_at, u.username
	          FROM battle_participants p
	          JOIN users u ON p.user_id = u.id
	          WHERE p.battle_id = $1 ORDER BY p.joined_at ASC`
	rows, err := r.db.QueryContext(ctx, query, battleID)
	if err != nil {
		return nil, fmt.Errorf("pgBattleRepository.GetParticipantsByBattleID: %w", err)
	}
	defer rows.Close()

	var participants []model.BattleParticipant
	for rows.Next() {
		var p model.BattleParticipant
		if err := rows.Scan(&p.ID, &p.BattleID, &p.UserID, &p.IsReady, &p.HasSubmitted, &p.Score, &p.JoinedAt, &p.Username); err != nil {
			return nil, fmt.Errorf("pgBattleRepository.GetParticipantsByBattleID scan: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *pgBattleRepository) SetParticipantReady(ctx context.Context, battleID, userID string, ready bool) error {
	query := `UPDATE battle_participants SET is_ready = $1 WHERE battle_id = $2 AND user_id = $3`
	res, err := r.db.ExecContext(ctx, query, ready, battleID, userID)
	if err != nil {
		return fmt.Errorf("pgBattleRepository.SetParticipantReady: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgBattleRepository) MarkParticipantSubmitted(ctx context.Context, tx *sql.Tx, battleID, userID string) error {
	query := `UPDATE battle_participants SET has_submitted = TRUE WHERE battle_id = $1 AND user_id = $2`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, battleID, userID)
	} else {
		_, err = r.db.ExecContext(ctx, query, battleID, userID)
	}
	if err != nil {
		return fmt.Errorf("pgBattleRepository.MarkParticipantSubmitted: %w", err)
	}
	return nil
}

func (r *pgBattleRepository) SetParticipantScore(ctx context.Context, battleID, userID string, score int) error {
	query := `UPDATE battle_participants SET score = $1 WHERE battle_id = $2 AND user_id = $3`
	if _, err := r.db.ExecContext(ctx, query, score, battleID, userID); err != nil {
		return fmt.Errorf("pgBattleRepository.SetParticipantScore: %w", err)
	}
	return nil
}

func (r *pgBattleRepository) StartBattle(ctx context.Context, battleID string, startedAt time.Time) (bool, error) {
	query := `UPDATE battles SET status = $1, started_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, model.BattleInProgress, startedAt, battleID, model.BattleWaiting)
	if err != nil {
		return false, fmt.Errorf("pgBattleRepository.StartBattle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgBattleRepository.StartBattle rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgBattleRepository) FinishBattle(ctx context.Context, battleID string, winnerID *string, finishedAt time.Time) (bool, error) {
	query := `UPDATE battles SET status = $1, winner_id = $2, finished_at = $3 WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, model.BattleFinished, winnerID, finishedAt, battleID, model.BattleInProgress)
	if err != nil {
		return false, fmt.Errorf("pgBattleRepository.FinishBattle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgBattleRepository.FinishBattle rows: %w", err)
	}
	return n == 1, nil
}
