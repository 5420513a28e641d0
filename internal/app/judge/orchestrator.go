package judge

import (
	"context"
	"time"

	"codebattle/internal/common/logger"
	"codebattle/internal/domain/model"

	"go.uber.org/zap"
)

// Verdict is the aggregate result of running a submission against every test
// case of its problem.
type Verdict struct {
	Status          model.SubmissionStatus
	TestCasesPassed int
	TotalTestCases  int
	ExecutionTimeMs *int
	MemoryUsedKb    *int
	ErrorMessage    *string
}

// ProblemSource supplies the ordered test cases and resource limits the
// orchestrator judges against.
type ProblemSource interface {
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error)
}

// Orchestrator turns one submission into one terminal verdict. Test cases run
// in order and judging stops at the first case that does not pass. Engine
// infrastructure failures are absorbed into a RUNTIME_ERROR verdict so every
// judging attempt terminates.
type Orchestrator struct {
	problems       ProblemSource
	engine         EngineClient
	overallTimeout time.Duration
}

func NewOrchestrator(problems ProblemSource, engine EngineClient, overallTimeout time.Duration) *Orchestrator {
	if overallTimeout <= 0 {
		overallTimeout = 2 * time.Minute
	}
	return &Orchestrator{problems: problems, engine: engine, overallTimeout: overallTimeout}
}

// Judge runs sub against every test case of problemID. It always returns a
// terminal verdict: infrastructure failures map to RUNTIME_ERROR rather than
// leaving the submission unresolved.
func (o *Orchestrator) Judge(ctx context.Context, sub *model.Submission, problemID string) Verdict {
	ctx, cancel := context.WithTimeout(ctx, o.overallTimeout)
	defer cancel()

	problem, err := o.problems.FindProblemByID(ctx, problemID)
	if err != nil {
		logger.Error("judge: problem lookup failed",
			zap.String("submission_id", sub.ID), zap.String("problem_id", problemID), zap.Error(err))
		return systemFailureVerdict(0, 0, "failed to load problem: "+err.Error())
	}

	testCases, err := o.problems.GetTestCasesByProblemID(ctx, problemID)
	if err != nil {
		logger.Error("judge: test case lookup failed",
			zap.String("submission_id", sub.ID), zap.String("problem_id", problemID), zap.Error(err))
		return systemFailureVerdict(0, 0, "failed to load test cases: "+err.Error())
	}
	if len(testCases) == 0 {
		return systemFailureVerdict(0, 0, "problem has no test cases")
	}

	total := len(testCases)
	passed := 0
	maxTimeMs := 0
	maxMemoryKb := 0
	executed := 0

	for _, tc := range testCases {
		result, err := o.engine.Execute(ctx, ExecRequest{
			Language:       sub.Language,
			Code:           sub.Code,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			TimeLimitMs:    problem.TimeLimitMs,
			MemoryLimitKb:  problem.MemoryLimitKb,
		})
		if err != nil {
			// Engine infrastructure failure, not a judged outcome.
			logger.Error("judge: engine call failed",
				zap.String("submission_id", sub.ID), zap.String("test_case_id", tc.ID), zap.Error(err))
			return Verdict{
				Status:          model.StatusRuntimeError,
				TestCasesPassed: passed,
				TotalTestCases:  total,
				ExecutionTimeMs: intPtrIfExecuted(executed, maxTimeMs),
				MemoryUsedKb:    intPtrIfExecuted(executed, maxMemoryKb),
				ErrorMessage:    strPtr("execution engine failure: " + err.Error()),
			}
		}

		executed++
		if result.TimeMs > maxTimeMs {
			maxTimeMs = result.TimeMs
		}
		if result.MemoryKb > maxMemoryKb {
			maxMemoryKb = result.MemoryKb
		}

		if result.Outcome != OutcomePass {
			return Verdict{
				Status:          statusFromOutcome(result.Outcome),
				TestCasesPassed: passed,
				TotalTestCases:  total,
				ExecutionTimeMs: intPtrIfExecuted(executed, maxTimeMs),
				MemoryUsedKb:    intPtrIfExecuted(executed, maxMemoryKb),
				ErrorMessage:    strPtrIfNotEmpty(result.ErrorText),
			}
		}
		passed++
	}

	return Verdict{
		Status:          model.StatusAccepted,
		TestCasesPassed: passed,
		TotalTestCases:  total,
		ExecutionTimeMs: intPtrIfExecuted(executed, maxTimeMs),
		MemoryUsedKb:    intPtrIfExecuted(executed, maxMemoryKb),
	}
}

func statusFromOutcome(outcome Outcome) model.SubmissionStatus {
	switch outcome {
	case OutcomeWrongOutput:
		return model.StatusWrongAnswer
	case OutcomeTimeLimitExceeded:
		return model.StatusTimeLimitExceeded
	case OutcomeMemoryLimitExceeded:
		return model.StatusMemoryLimitExceeded
	case OutcomeCompilationError:
		return model.StatusCompilationError
	default:
		return model.StatusRuntimeError
	}
}

func systemFailureVerdict(passed, total int, msg string) Verdict {
	return Verdict{
		Status:          model.StatusRuntimeError,
		TestCasesPassed: passed,
		TotalTestCases:  total,
		ErrorMessage:    strPtr(msg),
	}
}

func intPtrIfExecuted(executed, v int) *int {
	if executed == 0 {
		return nil
	}
	return &v
}

func strPtr(s string) *string {
	return &s
}

func strPtrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
