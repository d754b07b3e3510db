package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prepforge/prepforge-backend/internal/model"
	"github.com/prepforge/prepforge-backend/internal/scoring"
	"github.com/rs/zerolog"
)

// Lifecycle errors surfaced to the HTTP/WS layer.
var (
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrExamNotFound      = errors.New("exam not found")
	ErrQuestionsNotFound = errors.New("some questions were not found")
	ErrAlreadyFinished   = errors.New("attempt already submitted")
	ErrStillInProgress   = errors.New("attempt is still in progress")
)

// AttemptStore is the durable attempt record store. Finalize must be
// conditional on the attempt being unfinished and report whether this
// caller won; that conditional write is the at-most-once guarantee the
// lifecycle builds on.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	Finalize(ctx context.Context, id uuid.UUID, answers model.AnswerMap, res model.FinalizedResult, finishedAt time.Time) (bool, error)
	List(ctx context.Context) ([]model.AttemptSummary, error)
}

// ExamStore resolves exam-backed attempt sources.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// QuestionStore resolves question sets for papers, scoring, and review.
type QuestionStore interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
}

// AnswerBuffer is the best-effort autosave side channel plus the
// fire-and-forget outcome sink.
type AnswerBuffer interface {
	SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers model.AnswerMap) error
	LoadAnswers(ctx context.Context, attemptID uuid.UUID) (model.AnswerMap, error)
	Clear(ctx context.Context, attemptID uuid.UUID) error
	EnqueueOutcomes(ctx context.Context, outcomes []model.QuestionOutcome) error
}

// AttemptService owns the attempt lifecycle: creation, partial submissions,
// the single finalize transition, and the read views on either side of it.
type AttemptService struct {
	attempts  AttemptStore
	exams     ExamStore
	questions QuestionStore
	buffer    AnswerBuffer
	tokens    *TokenService
	log       zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	exams ExamStore,
	questions QuestionStore,
	buffer AnswerBuffer,
	tokens *TokenService,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:  attempts,
		exams:     exams,
		questions: questions,
		buffer:    buffer,
		tokens:    tokens,
		log:       log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start creates an attempt over an exam's question list. Explicit
// parameters override the exam's defaults; both are snapshotted onto the
// attempt and immutable from then on.
func (s *AttemptService) Start(ctx context.Context, examID uuid.UUID, negativeMark *float64, timeLimit *int) (*model.StartAttemptResponse, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if len(exam.QuestionIDs) == 0 {
		return nil, ErrExamNotFound
	}

	attempt := &model.Attempt{
		ExamID:       &exam.ID,
		ExamName:     exam.Name,
		QuestionIDs:  exam.QuestionIDs,
		NegativeMark: pickFloat(negativeMark, exam.NegativeMark),
		TimeLimit:    pickInt(timeLimit, exam.TimeLimit),
		Answers:      model.AnswerMap{},
	}
	return s.create(ctx, attempt)
}

// StartCustom creates a focus-mode attempt over an explicit question list.
// Every referenced question must exist.
func (s *AttemptService) StartCustom(ctx context.Context, questionIDs []uuid.UUID, negativeMark *float64, timeLimit *int) (*model.StartAttemptResponse, error) {
	found, err := s.questions.GetByIDs(ctx, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	if len(found) != len(questionIDs) {
		return nil, ErrQuestionsNotFound
	}

	attempt := &model.Attempt{
		QuestionIDs:  questionIDs,
		NegativeMark: pickFloat(negativeMark, model.DefaultNegativeMark),
		TimeLimit:    pickInt(timeLimit, model.DefaultTimeLimit),
		Answers:      model.AnswerMap{},
	}
	return s.create(ctx, attempt)
}

func (s *AttemptService) create(ctx context.Context, attempt *model.Attempt) (*model.StartAttemptResponse, error) {
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	token, err := s.tokens.IssueChannelToken(attempt.ID, "", attempt.Duration())
	if err != nil {
		return nil, fmt.Errorf("issue channel token: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Int("questions", len(attempt.QuestionIDs)).
		Int("time_limit", attempt.TimeLimit).
		Msg("Attempt started")

	return &model.StartAttemptResponse{
		AttemptID:    attempt.ID,
		ChannelToken: token,
		TimeLimit:    attempt.TimeLimit,
	}, nil
}

// Get retrieves a raw attempt. Used by the channel handler and the state
// endpoint; result data is exposed through GetResult only.
func (s *AttemptService) Get(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// RecordPartial merges a partial submission into the autosave buffer. It is
// best-effort and never finalizes; the only hard rejection is an attempt
// that has already been sealed.
func (s *AttemptService) RecordPartial(ctx context.Context, id uuid.UUID, answers model.AnswerMap) error {
	attempt, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if attempt.IsFinished() {
		return ErrAlreadyFinished
	}

	if err := s.buffer.SaveAnswers(ctx, id, answers); err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

// Finalize scores the attempt with the given answers and seals it. Exactly
// one of any set of concurrent callers wins; the rest get ErrAlreadyFinished
// and cause no mutation. The winner's answers override any autosaved state.
func (s *AttemptService) Finalize(ctx context.Context, id uuid.UUID, answers model.AnswerMap) (*scoring.Result, error) {
	attempt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.IsFinished() {
		return nil, ErrAlreadyFinished
	}

	questions, err := s.questions.GetByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	keys := make([]scoring.QuestionKey, len(questions))
	for i, q := range questions {
		keys[i] = scoring.QuestionKey{ID: q.ID, Topic: q.Topic, Correct: q.Correct}
	}
	result := scoring.Score(keys, answers, attempt.NegativeMark)

	now := time.Now()
	won, err := s.attempts.Finalize(ctx, id, answers, model.FinalizedResult{
		ScoreTotal:   result.ScoreTotal,
		ScoreByTopic: result.ScoreByTopic,
		CorrectCount: result.CorrectCount,
		WrongCount:   result.WrongCount,
		BlankCount:   result.BlankCount,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}
	if !won {
		// Lost the race against a concurrent finalize.
		return nil, ErrAlreadyFinished
	}

	s.recordOutcomes(ctx, id, result.Outcomes, now)

	s.log.Info().
		Str("attempt_id", id.String()).
		Float64("score", result.ScoreTotal).
		Int("correct", result.CorrectCount).
		Int("wrong", result.WrongCount).
		Int("blank", result.BlankCount).
		Msg("Attempt finalized")

	return &result, nil
}

// FinalizeExpired seals an attempt whose time limit ran out, using whatever
// answers were recorded: the persisted map overlaid with the fresher
// autosave buffer. An explicit submit that won the race is not an error
// for this path.
func (s *AttemptService) FinalizeExpired(ctx context.Context, id uuid.UUID) error {
	attempt, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if attempt.IsFinished() {
		return nil
	}

	answers := make(model.AnswerMap, len(attempt.Answers))
	for qid, ans := range attempt.Answers {
		answers[qid] = ans
	}
	buffered, err := s.buffer.LoadAnswers(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id.String()).Msg("Autosave buffer unavailable, finalizing from persisted answers")
	}
	for qid, ans := range buffered {
		answers[qid] = ans
	}

	if _, err := s.Finalize(ctx, id, answers); err != nil {
		if errors.Is(err, ErrAlreadyFinished) {
			return nil
		}
		return err
	}
	return nil
}

// recordOutcomes feeds the weak-question tracker and drops the autosave
// buffer. Both are fire-and-forget: a failure here never fails the finalize
// that already committed.
func (s *AttemptService) recordOutcomes(ctx context.Context, id uuid.UUID, outcomes []scoring.Outcome, at time.Time) {
	if err := s.buffer.Clear(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id.String()).Msg("Failed to clear autosave buffer")
	}

	records := make([]model.QuestionOutcome, len(outcomes))
	for i, o := range outcomes {
		records[i] = model.QuestionOutcome{QuestionID: o.QuestionID, WasCorrect: o.WasCorrect, At: at}
	}
	if err := s.buffer.EnqueueOutcomes(ctx, records); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id.String()).Msg("Failed to enqueue question outcomes")
	}
}

// GetPaper returns the pre-finalize view: attempt metadata and the question
// set with the answer key stripped.
func (s *AttemptService) GetPaper(ctx context.Context, id uuid.UUID) (*model.AttemptPaper, error) {
	attempt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.GetByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	paper := &model.AttemptPaper{
		Attempt: model.AttemptMeta{
			ID:           attempt.ID,
			ExamID:       attempt.ExamID,
			ExamName:     attempt.ExamName,
			QuestionIDs:  attempt.QuestionIDs,
			NegativeMark: attempt.NegativeMark,
			TimeLimit:    attempt.TimeLimit,
			StartedAt:    attempt.StartedAt,
		},
		Questions: make([]model.QuestionForTaker, len(questions)),
	}
	for i := range questions {
		paper.Questions[i] = questions[i].ForTaker()
	}
	return paper, nil
}

// GetState supports resume after a disconnect: autosaved answers overlaid
// on the persisted map, and remaining time recomputed from the immutable
// start timestamp.
func (s *AttemptService) GetState(ctx context.Context, id uuid.UUID) (*model.AttemptState, error) {
	attempt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.IsFinished() {
		return nil, ErrAlreadyFinished
	}

	answers := make(model.AnswerMap, len(attempt.Answers))
	for qid, ans := range attempt.Answers {
		answers[qid] = ans
	}
	buffered, err := s.buffer.LoadAnswers(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id.String()).Msg("Autosave buffer unavailable, serving persisted answers")
	}
	for qid, ans := range buffered {
		answers[qid] = ans
	}

	remaining := time.Until(attempt.StartedAt.Add(attempt.Duration()))
	if remaining < 0 {
		remaining = 0
	}

	return &model.AttemptState{
		AttemptID:        attempt.ID,
		AutosavedAnswers: answers,
		RemainingSeconds: remaining.Seconds(),
	}, nil
}

// GetResult returns the full review after finalize: questions with the
// answer key and explanations, the sealed answers, and the score breakdown.
// Repeated calls return identical result fields.
func (s *AttemptService) GetResult(ctx context.Context, id uuid.UUID) (*model.AttemptReview, error) {
	attempt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !attempt.IsFinished() {
		return nil, ErrStillInProgress
	}

	questions, err := s.questions.GetByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	return &model.AttemptReview{
		AttemptID:    attempt.ID,
		ExamName:     attempt.ExamName,
		Questions:    questions,
		Answers:      attempt.Answers,
		ScoreTotal:   *attempt.ScoreTotal,
		ScoreByTopic: attempt.ScoreByTopic,
		CorrectCount: *attempt.CorrectCount,
		WrongCount:   *attempt.WrongCount,
		BlankCount:   *attempt.BlankCount,
		StartedAt:    attempt.StartedAt,
		FinishedAt:   *attempt.FinishedAt,
	}, nil
}

// List returns attempt summaries, newest first.
func (s *AttemptService) List(ctx context.Context) ([]model.AttemptSummary, error) {
	return s.attempts.List(ctx)
}

func pickFloat(override *float64, fallback float64) float64 {
	if override != nil {
		return *override
	}
	return fallback
}

func pickInt(override *int, fallback int) int {
	if override != nil {
		return *override
	}
	return fallback
}
