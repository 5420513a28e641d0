package model

import "time"

type SubmissionStatus string

const (
	StatusPending             SubmissionStatus = "PENDING"
	StatusRunning             SubmissionStatus = "RUNNING"
	StatusAccepted            SubmissionStatus = "ACCEPTED"
	StatusWrongAnswer         SubmissionStatus = "WRONG_ANSWER"
	StatusTimeLimitExceeded   SubmissionStatus = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded SubmissionStatus = "MEMORY_LIMIT_EXCEEDED"
	StatusRuntimeError        SubmissionStatus = "RUNTIME_ERROR"
	StatusCompilationError    SubmissionStatus = "COMPILATION_ERROR"
)

// IsTerminal reports whether no further transition out of s is allowed.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusTimeLimitExceeded,
		StatusMemoryLimitExceeded, StatusRuntimeError, StatusCompilationError:
		return true
	}
	return false
}

type Submission struct {
	ID              string           `json:"id"`
	BattleID        string           `json:"battle_id"`
	UserID          string           `json:"user_id"`
	Language        Language         `json:"language"`
	Code            string           `json:"code,omitempty"` // Cleared before listings
	Status          SubmissionStatus `json:"status"`
	ExecutionTimeMs *int             `json:"execution_time_ms,omitempty"`
	MemoryUsedKb    *int             `json:"memory_used_kb,omitempty"`
	TestCasesPassed int              `json:"test_cases_passed"`
	TotalTestCases  int              `json:"total_test_cases"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	JudgedAt        *time.Time       `json:"judged_at,omitempty"`
	Username        *string          `json:"username,omitempty"` // For display
}
