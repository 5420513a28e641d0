package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"codebattle/internal/app/broadcast"
	"codebattle/internal/common"
	"codebattle/internal/common/logger"
	"codebattle/internal/domain/model"
	"codebattle/internal/domain/repository"
	"codebattle/internal/platform/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Score awarded to the winning participant.
const winnerScore = 100

type BattleService struct {
	battleRepo     repository.BattleRepository
	userRepo       repository.UserRepository
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	publisher      broadcast.Publisher
	db             *sql.DB // For transactions

	mu     sync.Mutex
	timers map[string]*time.Timer // battleID -> expiry timer
}

func NewBattleService(
	battleRepo repository.BattleRepository,
	userRepo repository.UserRepository,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	publisher broadcast.Publisher,
	db *sql.DB,
) *BattleService {
	return &BattleService{
		battleRepo:     battleRepo,
		userRepo:       userRepo,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		publisher:      publisher,
		db:             db,
		timers:         make(map[string]*time.Timer),
	}
}

type CreateBattleRequest struct {
	ProblemID       string `json:"problem_id"`
	IsPrivate       bool   `json:"is_private"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	MaxParticipants *int   `json:"max_participants,omitempty"`
}

// BattleView is a battle plus its participant roster, the shape every battle
// broadcast carries.
type BattleView struct {
	Battle       *model.Battle             `json:"battle"`
	Participants []model.BattleParticipant `json:"participants"`
}

func (s *BattleService) CreateBattle(ctx context.Context, userID string, req CreateBattleRequest) (*BattleView, error) {
	if req.ProblemID == "" {
		return nil, fmt.Errorf("problem_id is required: %w", common.ErrValidation)
	}
	if _, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID); err != nil {
		return nil, fmt.Errorf("problem not found: %w", err)
	}

	battle := &model.Battle{
		ID:              uuid.NewString(),
		ProblemID:       req.ProblemID,
		Status:          model.BattleWaiting,
		MaxParticipants: config.AppConfig.DefaultMaxParticipants,
		DurationSeconds: config.AppConfig.DefaultBattleDuration,
		IsPrivate:       req.IsPrivate,
	}
	if req.DurationSeconds != nil && *req.DurationSeconds > 0 {
		battle.DurationSeconds = *req.DurationSeconds
	}
	if req.MaxParticipants != nil && *req.MaxParticipants >= 2 {
		battle.MaxParticipants = *req.MaxParticipants
	}
	if req.IsPrivate {
		code := generateRoomCode()
		battle.RoomCode = &code
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.battleRepo.CreateBattle(ctx, tx, battle); err != nil {
		return nil, fmt.Errorf("failed to create battle: %w", err)
	}
	creator := &model.BattleParticipant{
		ID:       uuid.NewString(),
		BattleID: battle.ID,
		UserID:   userID,
	}
	if err := s.battleRepo.AddParticipant(ctx, tx, creator); err != nil {
		return nil, fmt.Errorf("failed to add creator as participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.view(ctx, battle)
}

type JoinBattleRequest struct {
	BattleID string `json:"battle_id,omitempty"`
	RoomCode string `json:"room_code,omitempty"`
}

func (s *BattleService) JoinBattle(ctx context.Context, userID string, req JoinBattleRequest) (*BattleView, error) {
	var battle *model.Battle
	var err error
	switch {
	case req.BattleID != "":
		battle, err = s.battleRepo.FindBattleByID(ctx, req.BattleID)
	case req.RoomCode != "":
		battle, err = s.battleRepo.FindBattleByRoomCode(ctx, strings.ToUpper(req.RoomCode))
	default:
		return nil, fmt.Errorf("battle_id or room_code is required: %w", common.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("battle not found: %w", err)
	}

	if battle.Status != model.BattleWaiting {
		return nil, fmt.Errorf("battle is %s: %w", battle.Status, common.ErrConflict)
	}

	participants, err := s.battleRepo.GetParticipantsByBattleID(ctx, battle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if len(participants) >= battle.MaxParticipants {
		return nil, fmt.Errorf("battle is full: %w", common.ErrConflict)
	}

	participant := &model.BattleParticipant{
		ID:       uuid.NewString(),
		BattleID: battle.ID,
		UserID:   userID,
	}
	if err := s.battleRepo.AddParticipant(ctx, nil, participant); err != nil {
		return nil, fmt.Errorf("failed to join battle: %w", err)
	}

	view, err := s.view(ctx, battle)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, broadcast.BattleTopic(battle.ID), broadcast.Event{Type: broadcast.EventBattle, Data: view})
	return view, nil
}

// SetReady flags a participant as ready. Once the battle is full and every
// participant is ready the battle starts; the WAITING -> IN_PROGRESS update is
// conditional so concurrent ready calls start it exactly once.
func (s *BattleService) SetReady(ctx context.Context, battleID, userID string) (*BattleView, error) {
	battle, err := s.battleRepo.FindBattleByID(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("battle not found: %w", err)
	}
	if battle.Status != model.BattleWaiting {
		return nil, fmt.Errorf("battle is %s: %w", battle.Status, common.ErrConflict)
	}

	if err := s.battleRepo.SetParticipantReady(ctx, battleID, userID, true); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("not a participant of this battle: %w", common.ErrForbidden)
		}
		return nil, fmt.Errorf("failed to set ready: %w", err)
	}

	participants, err := s.battleRepo.GetParticipantsByBattleID(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	if allReady(participants, battle.MaxParticipants) {
		started, err := s.battleRepo.StartBattle(ctx, battleID, time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to start battle: %w", err)
		}
		if started {
			s.scheduleExpiry(battleID, time.Duration(battle.DurationSeconds)*time.Second)
			logger.Info("battle started",
				zap.String("battle_id", battleID), zap.Int("duration_seconds", battle.DurationSeconds))
		}
	}

	battle, err = s.battleRepo.FindBattleByID(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload battle: %w", err)
	}
	view := &BattleView{Battle: battle, Participants: participants}
	s.publisher.Publish(ctx, broadcast.BattleTopic(battleID), broadcast.Event{Type: broadcast.EventBattle, Data: view})
	return view, nil
}

func (s *BattleService) GetBattle(ctx context.Context, battleID string) (*BattleView, error) {
	battle, err := s.battleRepo.FindBattleByID(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("battle not found: %w", err)
	}
	return s.view(ctx, battle)
}

func (s *BattleService) ListOpenBattles(ctx context.Context, limit, offset int) ([]model.Battle, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	battles, err := s.battleRepo.ListBattlesByStatus(ctx, model.BattleWaiting, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}
	// Private lobbies are join-by-code only.
	open := make([]model.Battle, 0, len(battles))
	for _, b := range battles {
		if !b.IsPrivate {
			open = append(open, b)
		}
	}
	return open, nil
}

// HandleAccepted completes the battle after an accepted verdict. The winner
// is the accepted submission with the earliest submitted_at (ties broken by
// lower submission id) among those already persisted; verdicts are persisted
// before this runs, so concurrent accepts resolve to the same winner. The
// IN_PROGRESS -> FINISHED update is conditional: exactly one caller observes
// won=true and writes the winner, later calls change nothing.
func (s *BattleService) HandleAccepted(ctx context.Context, battleID, userID string) {
	winnerID := s.pickWinner(ctx, battleID, userID)

	won, err := s.battleRepo.FinishBattle(ctx, battleID, &winnerID, time.Now())
	if err != nil {
		logger.Error("battle completion failed",
			zap.String("battle_id", battleID), zap.String("user_id", userID), zap.Error(err))
		return
	}
	if !won {
		// Battle already finished, someone else won first.
		logger.Info("accepted verdict after battle end",
			zap.String("battle_id", battleID), zap.String("user_id", userID))
		return
	}

	s.cancelExpiry(battleID)

	if err := s.battleRepo.SetParticipantScore(ctx, battleID, winnerID, winnerScore); err != nil {
		logger.Error("failed to set winner score", zap.String("battle_id", battleID), zap.Error(err))
	}
	s.updateBattleStats(ctx, battleID, &winnerID)
	s.publishBattleState(ctx, battleID)
}

// pickWinner resolves the winning user among the accepted submissions
// persisted for the battle: earliest submitted_at first, lower submission id
// on a timestamp tie. Falls back to the calling user when the lookup fails.
func (s *BattleService) pickWinner(ctx context.Context, battleID, userID string) string {
	subs, err := s.submissionRepo.ListByBattle(ctx, battleID)
	if err != nil {
		logger.Error("failed to list submissions for winner selection",
			zap.String("battle_id", battleID), zap.Error(err))
		return userID
	}

	var best *model.Submission
	for i := range subs {
		sub := &subs[i]
		if sub.Status != model.StatusAccepted {
			continue
		}
		if best == nil ||
			sub.SubmittedAt.Before(best.SubmittedAt) ||
			(sub.SubmittedAt.Equal(best.SubmittedAt) && sub.ID < best.ID) {
			best = sub
		}
	}
	if best == nil {
		return userID
	}
	return best.UserID
}

// ExpireBattle finishes a battle whose duration elapsed without a winner.
func (s *BattleService) ExpireBattle(ctx context.Context, battleID string) {
	finished, err := s.battleRepo.FinishBattle(ctx, battleID, nil, time.Now())
	if err != nil {
		logger.Error("battle expiry failed", zap.String("battle_id", battleID), zap.Error(err))
		return
	}
	if !finished {
		return // Already completed by a winning submission.
	}

	logger.Info("battle expired without winner", zap.String("battle_id", battleID))
	s.updateBattleStats(ctx, battleID, nil)
	s.publishBattleState(ctx, battleID)
}

// Shutdown stops all pending expiry timers. Battles left IN_PROGRESS are
// expired by their persisted deadline on the next startup sweep.
func (s *BattleService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// RecoverInProgress reschedules expiry for battles that were IN_PROGRESS when
// the process last stopped. Deadlines already in the past expire immediately.
func (s *BattleService) RecoverInProgress(ctx context.Context) error {
	battles, err := s.battleRepo.ListBattlesByStatus(ctx, model.BattleInProgress, 1000, 0)
	if err != nil {
		return fmt.Errorf("failed to list in-progress battles: %w", err)
	}
	for _, b := range battles {
		if b.StartedAt == nil {
			continue
		}
		remaining := time.Until(b.StartedAt.Add(time.Duration(b.DurationSeconds) * time.Second))
		if remaining <= 0 {
			s.ExpireBattle(ctx, b.ID)
			continue
		}
		s.scheduleExpiry(b.ID, remaining)
	}
	return nil
}

func (s *BattleService) scheduleExpiry(battleID string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.timers[battleID]; exists {
		return
	}
	s.timers[battleID] = time.AfterFunc(after, func() {
		s.cancelExpiry(battleID)
		s.ExpireBattle(context.Background(), battleID)
	})
}

func (s *BattleService) cancelExpiry(battleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[battleID]; ok {
		t.Stop()
		delete(s.timers, battleID)
	}
}

func (s *BattleService) updateBattleStats(ctx context.Context, battleID string, winnerID *string) {
	participants, err := s.battleRepo.GetParticipantsByBattleID(ctx, battleID)
	if err != nil {
		logger.Error("failed to load participants for stats", zap.String("battle_id", battleID), zap.Error(err))
		return
	}
	for _, p := range participants {
		won := winnerID != nil && p.UserID == *winnerID
		if err := s.userRepo.IncrementBattleStats(ctx, p.UserID, won); err != nil {
			logger.Error("failed to update battle stats",
				zap.String("battle_id", battleID), zap.String("user_id", p.UserID), zap.Error(err))
		}
	}
}

func (s *BattleService) publishBattleState(ctx context.Context, battleID string) {
	view, err := s.GetBattle(ctx, battleID)
	if err != nil {
		logger.Error("failed to load battle for broadcast", zap.String("battle_id", battleID), zap.Error(err))
		return
	}
	s.publisher.Publish(ctx, broadcast.BattleTopic(battleID), broadcast.Event{Type: broadcast.EventBattle, Data: view})
}

func (s *BattleService) view(ctx context.Context, battle *model.Battle) (*BattleView, error) {
	participants, err := s.battleRepo.GetParticipantsByBattleID(ctx, battle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	return &BattleView{Battle: battle, Participants: participants}, nil
}

func allReady(participants []model.BattleParticipant, maxParticipants int) bool {
	if len(participants) < maxParticipants {
		return false
	}
	for _, p := range participants {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// generateRoomCode returns a short join code for private lobbies. Collisions
// surface as a unique violation on insert.
func generateRoomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}
