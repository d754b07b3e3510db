package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prepforge/prepforge-backend/internal/config"
	"github.com/prepforge/prepforge-backend/internal/model"
	"github.com/rs/zerolog"
)

// ─── In-memory fakes ────────────────────────────────────────────────

type memAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
}

func newMemAttemptStore() *memAttemptStore {
	return &memAttemptStore{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func (s *memAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	cp := *a
	s.attempts[a.ID] = &cp
	return nil
}

func (s *memAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

// Finalize mirrors the conditional UPDATE: only an unfinished row is
// written, and only one caller ever observes won=true.
func (s *memAttemptStore) Finalize(_ context.Context, id uuid.UUID, answers model.AnswerMap, res model.FinalizedResult, finishedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok || a.FinishedAt != nil {
		return false, nil
	}
	a.Answers = answers
	a.FinishedAt = &finishedAt
	a.ScoreTotal = &res.ScoreTotal
	a.ScoreByTopic = res.ScoreByTopic
	a.CorrectCount = &res.CorrectCount
	a.WrongCount = &res.WrongCount
	a.BlankCount = &res.BlankCount
	return true, nil
}

func (s *memAttemptStore) List(_ context.Context) ([]model.AttemptSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AttemptSummary, 0, len(s.attempts))
	for _, a := range s.attempts {
		out = append(out, model.AttemptSummary{ID: a.ID, ExamName: a.ExamName, ScoreTotal: a.ScoreTotal, StartedAt: a.StartedAt, FinishedAt: a.FinishedAt})
	}
	return out, nil
}

type memExamStore struct {
	exams map[uuid.UUID]*model.Exam
}

func (s *memExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := s.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

type memQuestionStore struct {
	questions map[uuid.UUID]model.Question
}

func (s *memQuestionStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

type memBuffer struct {
	mu       sync.Mutex
	saved    map[uuid.UUID]model.AnswerMap
	outcomes []model.QuestionOutcome
	cleared  int
}

func newMemBuffer() *memBuffer {
	return &memBuffer{saved: make(map[uuid.UUID]model.AnswerMap)}
}

func (b *memBuffer) SaveAnswers(_ context.Context, id uuid.UUID, answers model.AnswerMap) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.saved[id]
	if !ok {
		m = model.AnswerMap{}
		b.saved[id] = m
	}
	for qid, ans := range answers {
		m[qid] = ans
	}
	return nil
}

func (b *memBuffer) LoadAnswers(_ context.Context, id uuid.UUID) (model.AnswerMap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := model.AnswerMap{}
	for qid, ans := range b.saved[id] {
		out[qid] = ans
	}
	return out, nil
}

func (b *memBuffer) Clear(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.saved, id)
	b.cleared++
	return nil
}

func (b *memBuffer) EnqueueOutcomes(_ context.Context, outcomes []model.QuestionOutcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outcomes = append(b.outcomes, outcomes...)
	return nil
}

// ─── Fixture ────────────────────────────────────────────────────────

type fixture struct {
	svc       *AttemptService
	store     *memAttemptStore
	buffer    *memBuffer
	exam      *model.Exam
	questions []model.Question
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	topics := []string{"T1", "T1", "T2", "T2"}
	correct := []model.Answer{model.AnswerA, model.AnswerB, model.AnswerC, model.AnswerD}
	qStore := &memQuestionStore{questions: make(map[uuid.UUID]model.Question)}
	questions := make([]model.Question, len(topics))
	ids := make([]uuid.UUID, len(topics))
	for i := range topics {
		q := model.Question{
			ID:          uuid.New(),
			Text:        "q",
			Correct:     correct[i],
			Topic:       topics[i],
			Explanation: "e",
		}
		questions[i] = q
		ids[i] = q.ID
		qStore.questions[q.ID] = q
	}

	exam := &model.Exam{
		ID:           uuid.New(),
		Name:         "Sample Exam",
		QuestionIDs:  ids,
		NegativeMark: 0.25,
		TimeLimit:    120,
	}
	eStore := &memExamStore{exams: map[uuid.UUID]*model.Exam{exam.ID: exam}}

	store := newMemAttemptStore()
	buffer := newMemBuffer()
	tokens := NewTokenService(&config.Config{TokenSecret: "test-secret"})

	return &fixture{
		svc:       NewAttemptService(store, eStore, qStore, buffer, tokens, zerolog.Nop()),
		store:     store,
		buffer:    buffer,
		exam:      exam,
		questions: questions,
	}
}

func (f *fixture) start(t *testing.T) uuid.UUID {
	t.Helper()
	resp, err := f.svc.Start(context.Background(), f.exam.ID, nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return resp.AttemptID
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestStart_SnapshotsExamDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Start(ctx, f.exam.ID, nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp.TimeLimit != 120 {
		t.Errorf("TimeLimit = %d, want exam default 120", resp.TimeLimit)
	}
	if resp.ChannelToken == "" {
		t.Error("no channel token issued")
	}

	a, err := f.svc.Get(ctx, resp.AttemptID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.NegativeMark != 0.25 || a.TimeLimit != 120 {
		t.Errorf("snapshot = (%v, %d), want (0.25, 120)", a.NegativeMark, a.TimeLimit)
	}
	if a.IsFinished() {
		t.Error("new attempt already finished")
	}
}

func TestStart_OverridesSnapshotted(t *testing.T) {
	f := newFixture(t)
	mark := 0.5
	limit := 30

	resp, err := f.svc.Start(context.Background(), f.exam.ID, &mark, &limit)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	a, _ := f.svc.Get(context.Background(), resp.AttemptID)
	if a.NegativeMark != 0.5 || a.TimeLimit != 30 {
		t.Errorf("snapshot = (%v, %d), want (0.5, 30)", a.NegativeMark, a.TimeLimit)
	}
}

func TestStart_UnknownExam(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), uuid.New(), nil, nil)
	if !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestStartCustom_MissingQuestion(t *testing.T) {
	f := newFixture(t)
	ids := []uuid.UUID{f.questions[0].ID, uuid.New()}

	_, err := f.svc.StartCustom(context.Background(), ids, nil, nil)
	if !errors.Is(err, ErrQuestionsNotFound) {
		t.Fatalf("err = %v, want ErrQuestionsNotFound", err)
	}
}

func TestStartCustom_Defaults(t *testing.T) {
	f := newFixture(t)
	ids := []uuid.UUID{f.questions[0].ID, f.questions[1].ID}

	resp, err := f.svc.StartCustom(context.Background(), ids, nil, nil)
	if err != nil {
		t.Fatalf("StartCustom: %v", err)
	}

	a, _ := f.svc.Get(context.Background(), resp.AttemptID)
	if a.ExamID != nil {
		t.Error("focus-mode attempt has an exam reference")
	}
	if a.NegativeMark != model.DefaultNegativeMark || a.TimeLimit != model.DefaultTimeLimit {
		t.Errorf("snapshot = (%v, %d), want defaults (%v, %d)",
			a.NegativeMark, a.TimeLimit, model.DefaultNegativeMark, model.DefaultTimeLimit)
	}
}

func TestFinalize_ScoresAndSeals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t)

	qs := f.questions
	answers := model.AnswerMap{
		qs[0].ID.String(): model.AnswerA,          // correct
		qs[1].ID.String(): model.AnswerC,          // wrong
		qs[2].ID.String(): model.AnswerUnanswered, // blank
		qs[3].ID.String(): model.AnswerD,          // correct
	}

	res, err := f.svc.Finalize(ctx, id, answers)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.ScoreTotal != 43.75 {
		t.Errorf("ScoreTotal = %v, want 43.75", res.ScoreTotal)
	}

	review, err := f.svc.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if review.CorrectCount != 2 || review.WrongCount != 1 || review.BlankCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", review.CorrectCount, review.WrongCount, review.BlankCount)
	}
	if len(f.buffer.outcomes) != len(qs) {
		t.Errorf("enqueued %d outcomes, want %d", len(f.buffer.outcomes), len(qs))
	}
	if f.buffer.cleared != 1 {
		t.Errorf("buffer cleared %d times, want 1", f.buffer.cleared)
	}
}

func TestFinalize_ExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t)

	winning := model.AnswerMap{f.questions[0].ID.String(): model.AnswerA}

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Finalize(ctx, id, winning)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyFinished):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d finalize winners, want exactly 1", wins)
	}

	a, _ := f.svc.Get(ctx, id)
	if !a.IsFinished() {
		t.Fatal("attempt not finished after winning finalize")
	}
	if *a.CorrectCount != 1 {
		t.Errorf("stored CorrectCount = %d, want the winner's 1", *a.CorrectCount)
	}
}

func TestFinalize_UnknownAttempt(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Finalize(context.Background(), uuid.New(), model.AnswerMap{})
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("err = %v, want ErrAttemptNotFound", err)
	}
}

func TestRecordPartial_AfterFinalizeConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t)

	sealed := model.AnswerMap{f.questions[0].ID.String(): model.AnswerA}
	if _, err := f.svc.Finalize(ctx, id, sealed); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	err := f.svc.RecordPartial(ctx, id, model.AnswerMap{f.questions[1].ID.String(): model.AnswerB})
	if !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("err = %v, want ErrAlreadyFinished", err)
	}

	// The sealed answers must be untouched.
	a, _ := f.svc.Get(ctx, id)
	if len(a.Answers) != 1 || a.Answers[f.questions[0].ID.String()] != model.AnswerA {
		t.Errorf("stored answers mutated after rejected partial: %v", a.Answers)
	}
}

func TestFinalizeExpired_UsesAutosavedAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t)

	autosave := model.AnswerMap{
		f.questions[0].ID.String(): model.AnswerA,
		f.questions[1].ID.String(): model.AnswerB,
	}
	if err := f.svc.RecordPartial(ctx, id, autosave); err != nil {
		t.Fatalf("RecordPartial: %v", err)
	}

	if err := f.svc.FinalizeExpired(ctx, id); err != nil {
		t.Fatalf("FinalizeExpired: %v", err)
	}

	review, err := f.svc.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if review.CorrectCount != 2 || review.BlankCount != 2 {
		t.Errorf("counts = %d correct / %d blank, want 2/2", review.CorrectCount, review.BlankCount)
	}
}

func TestFinalizeExpired_AfterExplicitSubmitIsQuiet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t)

	if _, err := f.svc.Finalize(ctx, id, model.AnswerMap{}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := f.svc.FinalizeExpired(ctx, id); err != nil {
		t.Fatalf("FinalizeExpired after explicit submit: %v", err)
	}
}

func TestGetResult_BeforeFinalize(t *testing.T) {
	f := newFixture(t)
	id := f.start(t)

	_, err := f.svc.GetResult(context.Background(), id)
	if !errors.Is(err, ErrStillInProgress) {
		t.Fatalf("err = %v, want ErrStillInProgress", err)
	}
}

func TestGetResult_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t)

	answers := model.AnswerMap{f.questions[0].ID.String(): model.AnswerA}
	if _, err := f.svc.Finalize(ctx, id, answers); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	first, err := f.svc.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := f.svc.GetResult(ctx, id)
		if err != nil {
			t.Fatalf("GetResult #%d: %v", i+2, err)
		}
		if again.ScoreTotal != first.ScoreTotal ||
			again.CorrectCount != first.CorrectCount ||
			again.WrongCount != first.WrongCount ||
			again.BlankCount != first.BlankCount ||
			!again.FinishedAt.Equal(first.FinishedAt) {
			t.Fatalf("GetResult #%d differs from first: %+v vs %+v", i+2, again, first)
		}
	}
}

func TestGetPaper_StripsAnswerKey(t *testing.T) {
	f := newFixture(t)
	id := f.start(t)

	paper, err := f.svc.GetPaper(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if len(paper.Questions) != len(f.questions) {
		t.Fatalf("paper has %d questions, want %d", len(paper.Questions), len(f.questions))
	}
	// QuestionForTaker carries no Correct/Explanation fields at all; check
	// the metadata made it through instead.
	if paper.Attempt.TimeLimit != 120 || paper.Attempt.NegativeMark != 0.25 {
		t.Errorf("paper metadata = (%v, %d)", paper.Attempt.NegativeMark, paper.Attempt.TimeLimit)
	}
}

func TestGetState_MergesBufferOverPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t)

	if err := f.svc.RecordPartial(ctx, id, model.AnswerMap{f.questions[0].ID.String(): model.AnswerB}); err != nil {
		t.Fatalf("RecordPartial: %v", err)
	}
	if err := f.svc.RecordPartial(ctx, id, model.AnswerMap{f.questions[0].ID.String(): model.AnswerA}); err != nil {
		t.Fatalf("RecordPartial: %v", err)
	}

	state, err := f.svc.GetState(ctx, id)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.AutosavedAnswers[f.questions[0].ID.String()] != model.AnswerA {
		t.Errorf("autosaved answer = %q, want latest A", state.AutosavedAnswers[f.questions[0].ID.String()])
	}
	if state.RemainingSeconds <= 0 || state.RemainingSeconds > 120*60 {
		t.Errorf("RemainingSeconds = %v, want within (0, 7200]", state.RemainingSeconds)
	}
}
