package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"codebattle/internal/app/broadcast"
	"codebattle/internal/app/judge"
	"codebattle/internal/common"
	"codebattle/internal/common/logger"
	"codebattle/internal/domain/model"
	"codebattle/internal/domain/repository"
	"codebattle/internal/platform/config"
	"codebattle/internal/platform/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BattleCompleter reacts to accepted verdicts. Implemented by BattleService;
// the indirection keeps the submission pipeline free of battle bookkeeping.
type BattleCompleter interface {
	HandleAccepted(ctx context.Context, battleID, userID string)
}

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	battleRepo     repository.BattleRepository
	orchestrator   *judge.Orchestrator
	judgeQueue     queue.JudgeQueue
	publisher      broadcast.Publisher
	completer      BattleCompleter
	db             *sql.DB // For transactions
}

func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	battleRepo repository.BattleRepository,
	orchestrator *judge.Orchestrator,
	judgeQueue queue.JudgeQueue,
	publisher broadcast.Publisher,
	completer BattleCompleter,
	db *sql.DB,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		battleRepo:     battleRepo,
		orchestrator:   orchestrator,
		judgeQueue:     judgeQueue,
		publisher:      publisher,
		completer:      completer,
		db:             db,
	}
}

type SubmitRequest struct {
	BattleID string `json:"battle_id"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Submit accepts code for judging. The submission is persisted as PENDING and
// its id pushed onto the judge queue; the verdict arrives asynchronously over
// the battle topic.
func (s *SubmissionService) Submit(ctx context.Context, userID string, req SubmitRequest) (*model.Submission, error) {
	if req.Code == "" {
		return nil, fmt.Errorf("code is required: %w", common.ErrValidation)
	}
	if len(req.Code) > config.AppConfig.MaxCodeBytes {
		return nil, fmt.Errorf("code exceeds %d bytes: %w", config.AppConfig.MaxCodeBytes, common.ErrValidation)
	}
	lang := model.Language(req.Language)
	if !lang.IsValid() {
		return nil, fmt.Errorf("unsupported language %q: %w", req.Language, common.ErrValidation)
	}

	battle, err := s.battleRepo.FindBattleByID(ctx, req.BattleID)
	if err != nil {
		return nil, fmt.Errorf("battle not found: %w", err)
	}
	if battle.Status != model.BattleInProgress {
		return nil, fmt.Errorf("battle is %s: %w", battle.Status, common.ErrBattleNotActive)
	}
	if _, err := s.battleRepo.GetParticipant(ctx, battle.ID, userID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("not a participant of this battle: %w", common.ErrForbidden)
		}
		return nil, fmt.Errorf("failed to check participant: %w", err)
	}

	submission := &model.Submission{
		ID:          uuid.NewString(),
		BattleID:    battle.ID,
		UserID:      userID,
		Language:    lang,
		Code:        req.Code,
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.submissionRepo.CreateSubmission(ctx, tx, submission); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	if err := s.battleRepo.MarkParticipantSubmitted(ctx, tx, battle.ID, userID); err != nil {
		return nil, fmt.Errorf("failed to mark participant submitted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.publishSubmission(ctx, submission)

	if err := s.judgeQueue.Enqueue(ctx, submission.ID); err != nil {
		// Persisted but not queued; the client sees PENDING and may resubmit.
		logger.Error("failed to enqueue submission",
			zap.String("submission_id", submission.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to enqueue submission: %w", err)
	}

	logger.Info("submission accepted",
		zap.String("submission_id", submission.ID),
		zap.String("battle_id", battle.ID),
		zap.String("user_id", userID),
		zap.String("language", string(lang)))
	return submission, nil
}

// RunJudging drives one queued submission through PENDING -> RUNNING -> a
// terminal verdict. Safe to call more than once per id: transitions are
// conditional and an already-terminal submission is skipped.
func (s *SubmissionService) RunJudging(ctx context.Context, submissionID string) {
	sub, err := s.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		// A queued id with no row is a consistency fault, not a crash.
		logger.Error("queued submission not found",
			zap.String("submission_id", submissionID), zap.Error(err))
		return
	}
	if sub.Status.IsTerminal() {
		logger.Warn("submission already judged, skipping",
			zap.String("submission_id", submissionID), zap.String("status", string(sub.Status)))
		return
	}

	if err := s.submissionRepo.MarkRunning(ctx, submissionID); err != nil {
		if errors.Is(err, common.ErrInvalidTransition) {
			logger.Warn("submission not in PENDING, skipping",
				zap.String("submission_id", submissionID), zap.String("status", string(sub.Status)))
			return
		}
		logger.Error("failed to mark submission running",
			zap.String("submission_id", submissionID), zap.Error(err))
		return
	}
	sub.Status = model.StatusRunning
	s.publishSubmission(ctx, sub)

	battle, err := s.battleRepo.FindBattleByID(ctx, sub.BattleID)
	if err != nil {
		logger.Error("battle lookup failed for submission",
			zap.String("submission_id", submissionID), zap.String("battle_id", sub.BattleID), zap.Error(err))
		s.applyAndPublish(ctx, sub, judge.Verdict{
			Status:       model.StatusRuntimeError,
			ErrorMessage: errMsgPtr("failed to resolve battle: " + err.Error()),
		})
		return
	}

	verdict := s.orchestrator.Judge(ctx, sub, battle.ProblemID)
	s.applyAndPublish(ctx, sub, verdict)

	if verdict.Status == model.StatusAccepted {
		s.completer.HandleAccepted(ctx, sub.BattleID, sub.UserID)
	}
}

func (s *SubmissionService) applyAndPublish(ctx context.Context, sub *model.Submission, verdict judge.Verdict) {
	judgedAt := time.Now()
	result := repository.SubmissionResult{
		Status:          verdict.Status,
		TestCasesPassed: verdict.TestCasesPassed,
		TotalTestCases:  verdict.TotalTestCases,
		ExecutionTimeMs: verdict.ExecutionTimeMs,
		MemoryUsedKb:    verdict.MemoryUsedKb,
		ErrorMessage:    verdict.ErrorMessage,
		JudgedAt:        judgedAt,
	}
	if err := s.submissionRepo.ApplyVerdict(ctx, sub.ID, result); err != nil {
		logger.Error("failed to apply verdict",
			zap.String("submission_id", sub.ID), zap.String("status", string(verdict.Status)), zap.Error(err))
		return
	}

	sub.Status = verdict.Status
	sub.TestCasesPassed = verdict.TestCasesPassed
	sub.TotalTestCases = verdict.TotalTestCases
	sub.ExecutionTimeMs = verdict.ExecutionTimeMs
	sub.MemoryUsedKb = verdict.MemoryUsedKb
	sub.ErrorMessage = verdict.ErrorMessage
	sub.JudgedAt = &judgedAt

	logger.Info("submission judged",
		zap.String("submission_id", sub.ID),
		zap.String("status", string(verdict.Status)),
		zap.Int("test_cases_passed", verdict.TestCasesPassed),
		zap.Int("total_test_cases", verdict.TotalTestCases))
	s.publishSubmission(ctx, sub)
}

// GetSubmission returns one submission. Source code is visible only to its
// author and admins.
func (s *SubmissionService) GetSubmission(ctx context.Context, id, requesterID, requesterRole string) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetSubmissionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("submission not found: %w", err)
	}
	if sub.UserID != requesterID && requesterRole != model.RoleAdmin {
		sub.Code = ""
	}
	return sub, nil
}

func (s *SubmissionService) ListByBattle(ctx context.Context, battleID string) ([]model.Submission, error) {
	subs, err := s.submissionRepo.ListByBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

func (s *SubmissionService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	subs, err := s.submissionRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

func (s *SubmissionService) ListByBattleAndUser(ctx context.Context, battleID, userID string) ([]model.Submission, error) {
	subs, err := s.submissionRepo.ListByBattleAndUser(ctx, battleID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

// publishSubmission broadcasts a status snapshot without the source code.
func (s *SubmissionService) publishSubmission(ctx context.Context, sub *model.Submission) {
	snapshot := *sub
	snapshot.Code = ""
	s.publisher.Publish(ctx, broadcast.BattleTopic(sub.BattleID),
		broadcast.Event{Type: broadcast.EventSubmission, Data: &snapshot})
}

func errMsgPtr(s string) *string {
	return &s
}
