package judge

import (
	"context"

	"codebattle/internal/domain/model"
)

// Outcome is the engine's verdict for a single test case.
type Outcome string

const (
	OutcomePass                Outcome = "PASS"
	OutcomeWrongOutput         Outcome = "WRONG_OUTPUT"
	OutcomeTimeLimitExceeded   Outcome = "TIME_LIMIT_EXCEEDED"
	OutcomeMemoryLimitExceeded Outcome = "MEMORY_LIMIT_EXCEEDED"
	OutcomeRuntimeError        Outcome = "RUNTIME_ERROR"
	OutcomeCompilationError    Outcome = "COMPILATION_ERROR"
)

type ExecRequest struct {
	Language       model.Language `json:"language"`
	Code           string         `json:"code"`
	Input          string         `json:"input"`
	ExpectedOutput string         `json:"expected_output"`
	TimeLimitMs    int            `json:"time_limit_ms"`
	MemoryLimitKb  int            `json:"memory_limit_kb"`
}

type ExecResult struct {
	Outcome   Outcome `json:"outcome"`
	TimeMs    int     `json:"time_ms"`
	MemoryKb  int     `json:"memory_kb"`
	ErrorText string  `json:"error_text,omitempty"`
}

// EngineClient runs one (code, test case) unit in an isolated sandbox.
// A non-nil error means the engine itself failed (infrastructure), not that
// the submission was judged; judged outcomes always arrive as an ExecResult.
type EngineClient interface {
	Execute(ctx context.Context, req ExecRequest) (ExecResult, error)
}
