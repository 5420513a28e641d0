package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"codebattle/internal/common"
	"codebattle/internal/domain/model"
	"codebattle/internal/domain/repository"
	"codebattle/internal/platform/config"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	db          *sql.DB // For transactions
}

func NewProblemService(problemRepo repository.ProblemRepository, db *sql.DB) *ProblemService {
	return &ProblemService{problemRepo: problemRepo, db: db}
}

type TestCaseInput struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
}

type UpsertProblemRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Constraints   *string         `json:"constraints,omitempty"`
	Difficulty    string          `json:"difficulty"`
	TimeLimitMs   *int            `json:"time_limit_ms,omitempty"`
	MemoryLimitKb *int            `json:"memory_limit_kb,omitempty"`
	TestCases     []TestCaseInput `json:"test_cases"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, req UpsertProblemRequest) (*model.Problem, error) {
	if err := validateProblemRequest(req); err != nil {
		return nil, err
	}

	problem := &model.Problem{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Slug:          slug.Make(req.Title),
		Description:   req.Description,
		Constraints:   req.Constraints,
		Difficulty:    model.ProblemDifficulty(req.Difficulty),
		TimeLimitMs:   config.AppConfig.DefaultTimeLimitMs,
		MemoryLimitKb: config.AppConfig.DefaultMemoryLimitKb,
	}
	if req.TimeLimitMs != nil {
		problem.TimeLimitMs = *req.TimeLimitMs
	}
	if req.MemoryLimitKb != nil {
		problem.MemoryLimitKb = *req.MemoryLimitKb
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
		return nil, fmt.Errorf("failed to create problem: %w", err)
	}

	testCases := buildTestCases(problem.ID, req.TestCases)
	if err := s.problemRepo.AddTestCases(ctx, tx, problem.ID, testCases); err != nil {
		return nil, fmt.Errorf("failed to add test cases: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	problem.TestCases = testCases
	return problem, nil
}

// UpdateProblem replaces the problem fields and its full test case set.
func (s *ProblemService) UpdateProblem(ctx context.Context, id string, req UpsertProblemRequest) (*model.Problem, error) {
	if err := validateProblemRequest(req); err != nil {
		return nil, err
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("problem not found: %w", err)
	}

	problem.Title = req.Title
	problem.Slug = slug.Make(req.Title)
	problem.Description = req.Description
	problem.Constraints = req.Constraints
	problem.Difficulty = model.ProblemDifficulty(req.Difficulty)
	if req.TimeLimitMs != nil {
		problem.TimeLimitMs = *req.TimeLimitMs
	}
	if req.MemoryLimitKb != nil {
		problem.MemoryLimitKb = *req.MemoryLimitKb
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.UpdateProblem(ctx, tx, problem); err != nil {
		return nil, fmt.Errorf("failed to update problem: %w", err)
	}
	if err := s.problemRepo.DeleteTestCasesByProblemID(ctx, tx, problem.ID); err != nil {
		return nil, fmt.Errorf("failed to clear test cases: %w", err)
	}
	testCases := buildTestCases(problem.ID, req.TestCases)
	if err := s.problemRepo.AddTestCases(ctx, tx, problem.ID, testCases); err != nil {
		return nil, fmt.Errorf("failed to add test cases: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	problem.TestCases = testCases
	return problem, nil
}

func (s *ProblemService) DeleteProblem(ctx context.Context, id string) error {
	if err := s.problemRepo.DeleteProblem(ctx, id); err != nil {
		return fmt.Errorf("failed to delete problem: %w", err)
	}
	return nil
}

// GetProblem returns a problem with its test cases. Hidden cases are stripped
// unless the caller is an admin.
func (s *ProblemService) GetProblem(ctx context.Context, idOrSlug string, isAdmin bool) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemByID(ctx, idOrSlug)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to find problem: %w", err)
		}
		problem, err = s.problemRepo.FindProblemBySlug(ctx, idOrSlug)
		if err != nil {
			return nil, fmt.Errorf("problem not found: %w", err)
		}
	}

	testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test cases: %w", err)
	}
	if !isAdmin {
		visible := make([]model.TestCase, 0, len(testCases))
		for _, tc := range testCases {
			if !tc.IsHidden {
				visible = append(visible, tc)
			}
		}
		testCases = visible
	}
	problem.TestCases = testCases
	return problem, nil
}

type ProblemListResponse struct {
	Problems []model.Problem `json:"problems"`
	Total    int             `json:"total"`
}

func (s *ProblemService) ListProblems(ctx context.Context, limit, offset int) (*ProblemListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	problems, total, err := s.problemRepo.ListProblems(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}
	return &ProblemListResponse{Problems: problems, Total: total}, nil
}

func validateProblemRequest(req UpsertProblemRequest) error {
	if req.Title == "" || req.Description == "" {
		return fmt.Errorf("title and description are required: %w", common.ErrValidation)
	}
	switch model.ProblemDifficulty(req.Difficulty) {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return fmt.Errorf("invalid difficulty %q: %w", req.Difficulty, common.ErrValidation)
	}
	if len(req.TestCases) == 0 {
		return fmt.Errorf("at least one test case is required: %w", common.ErrValidation)
	}
	return nil
}

func buildTestCases(problemID string, inputs []TestCaseInput) []model.TestCase {
	testCases := make([]model.TestCase, 0, len(inputs))
	for i, in := range inputs {
		testCases = append(testCases, model.TestCase{
			ID:             uuid.NewString(),
			ProblemID:      problemID,
			Input:          in.Input,
			ExpectedOutput: in.ExpectedOutput,
			IsHidden:       in.IsHidden,
			OrderIndex:     i,
		})
	}
	return testCases
}
