package service

import (
	"context"
	"database/sql"
	"sync"
	"time"
	"codebattle/internal/app/broadcast"
	"codebattle/internal/common"
	"codebattle/internal/domain/model"
	"codebattle/internal/domain/repository"
)

type fakeSubmissionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Submission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: make(map[string]*model.Submission)}
}

func (r *fakeSubmissionRepo) CreateSubmission(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.subs[s.ID] = &cp
	return nil
}

func (r *fakeSubmissionRepo) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSubmissionRepo) MarkRunning(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.Status != model.StatusPending {
		return common.ErrInvalidTransition
	}
	s.Status = model.StatusRunning
	return nil
}

func (r *fakeSubmissionRepo) ApplyVerdict(ctx context.Context, id string, result repository.SubmissionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.Status != model.StatusRunning {
		return common.ErrInvalidTransition
	}
	s.Status = result.Status
	s.TestCasesPassed = result.TestCasesPassed
	s.TotalTestCases = result.TotalTestCases
	s.ExecutionTimeMs = result.ExecutionTimeMs
	s.MemoryUsedKb = result.MemoryUsedKb
	s.ErrorMessage = result.ErrorMessage
	judgedAt := result.JudgedAt
	s.JudgedAt = &judgedAt
	return nil
}

func (r *fakeSubmissionRepo) ListByBattle(ctx context.Context, battleID string) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, s := range r.subs {
		if s.BattleID == battleID {
			cp := *s
			cp.Code = ""
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, s := range r.subs {
		if s.UserID == userID {
			cp := *s
			cp.Code = ""
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) ListByBattleAndUser(ctx context.Context, battleID, userID string) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, s := range r.subs {
		if s.BattleID == battleID && s.UserID == userID {
			cp := *s
			cp.Code = ""
			out = append(out, cp)
		}
	}
	return out, nil
}

type fakeBattleRepo struct {
	mu           sync.Mutex
	battles      map[string]*model.Battle
	participants map[string][]*model.BattleParticipant // battleID -> roster
}

func newFakeBattleRepo() *fakeBattleRepo {
	return &fakeBattleRepo{
		battles:      make(map[string]*model.Battle),
		participants: make(map[string][]*model.BattleParticipant),
	}
}

func (r *fakeBattleRepo) CreateBattle(ctx context.Context, tx *sql.Tx, b *model.Battle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	cp.CreatedAt = time.Now()
	r.battles[b.ID] = &cp
	return nil
}

func (r *fakeBattleRepo) FindBattleByID(ctx context.Context, id string) (*model.Battle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBattleRepo) FindBattleByRoomCode(ctx context.Context, roomCode string) (*model.Battle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.battles {
		if b.RoomCode != nil && *b.RoomCode == roomCode {
			cp := *b
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeBattleRepo) ListBattlesByStatus(ctx context.Context, status model.BattleStatus, limit, offset int) ([]model.Battle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Battle
	for _, b := range r.battles {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeBattleRepo) AddParticipant(ctx context.Context, tx *sql.Tx, p *model.BattleParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participants[p.BattleID] {
		if existing.UserID == p.UserID {
			return common.ErrConflict
		}
	}
	cp := *p
	cp.JoinedAt = time.Now()
	r.participants[p.BattleID] = append(r.participants[p.BattleID], &cp)
	return nil
}

func (r *fakeBattleRepo) GetParticipant(ctx context.Context, battleID, userID string) (*model.BattleParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[battleID] {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeBattleRepo) GetParticipantsByBattleID(ctx context.Context, battleID string) ([]model.BattleParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.BattleParticipant
	for _, p := range r.participants[battleID] {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeBattleRepo) SetParticipantReady(ctx context.Context, battleID, userID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[battleID] {
		if p.UserID == userID {
			p.IsReady = ready
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeBattleRepo) MarkParticipantSubmitted(ctx context.Context, tx *sql.Tx, battleID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[battleID] {
		if p.UserID == userID {
			p.HasSubmitted = true
			return nil
		}
	}
	return nil
}

func (r *fakeBattleRepo) SetParticipantScore(ctx context.Context, battleID, userID string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[battleID] {
		if p.UserID == userID {
			p.Score = score
			return nil
		}
	}
	return nil
}

func (r *fakeBattleRepo) StartBattle(ctx context.Context, battleID string, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[battleID]
	if !ok || b.Status != model.BattleWaiting {
		return false, nil
	}
	b.Status = model.BattleInProgress
	b.StartedAt = &startedAt
	return true, nil
}

func (r *fakeBattleRepo) FinishBattle(ctx context.Context, battleID string, winnerID *string, finishedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[battleID]
	if !ok || b.Status != model.BattleInProgress {
		return false, nil
	}
	b.Status = model.BattleFinished
	b.WinnerID = winnerID
	b.FinishedAt = &finishedAt
	return true, nil
}

type statsCall struct {
	userID string
	won    bool
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	stats []statsCall
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return common.ErrConflict
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (r *fakeUserRepo) IncrementBattleStats(ctx context.Context, id string, won bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, statsCall{userID: id, won: won})
	if u, ok := r.users[id]; ok {
		u.BattlesPlayed++
		if won {
			u.BattlesWon++
		}
	}
	return nil
}

type fakeProblemRepo struct {
	mu       sync.Mutex
	problems map[string]*model.Problem
	cases    map[string][]model.TestCase
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{
		problems: make(map[string]*model.Problem),
		cases:    make(map[string][]model.TestCase),
	}
}

func (r *fakeProblemRepo) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.problems[p.ID] = &cp
	return nil
}

func (r *fakeProblemRepo) UpdateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.problems[p.ID] = &cp
	return nil
}

func (r *fakeProblemRepo) DeleteProblem(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.problems[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.problems, id)
	return nil
}

func (r *fakeProblemRepo) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProblemRepo) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.problems {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeProblemRepo) ListProblems(ctx context.Context, limit, offset int) ([]model.Problem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Problem
	for _, p := range r.problems {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *fakeProblemRepo) AddTestCases(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[problemID] = append(r.cases[problemID], testCases...)
	return nil
}

func (r *fakeProblemRepo) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TestCase(nil), r.cases[problemID]...), nil
}

func (r *fakeProblemRepo) DeleteTestCasesByProblemID(ctx context.Context, tx *sql.Tx, problemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cases, problemID)
	return nil
}

type fakeJudgeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeJudgeQueue) Enqueue(ctx context.Context, submissionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, submissionID)
	return nil
}

func (q *fakeJudgeQueue) Dequeue(ctx context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", context.Canceled
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

type publishedEvent struct {
	topic string
	event broadcast.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, event broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, event: event})
}

func (p *fakePublisher) byType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls []string // battleID/userID pairs
}

func (c *fakeCompleter) HandleAccepted(ctx context.Context, battleID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, battleID+"/"+userID)
}
