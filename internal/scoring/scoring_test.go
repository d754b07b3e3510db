package scoring

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/prepforge/prepforge-backend/internal/model"
)

func questionSet(topics ...string) []QuestionKey {
	correct := []model.Answer{model.AnswerA, model.AnswerB, model.AnswerC, model.AnswerD}
	qs := make([]QuestionKey, len(topics))
	for i, topic := range topics {
		qs[i] = QuestionKey{ID: uuid.New(), Topic: topic, Correct: correct[i%len(correct)]}
	}
	return qs
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_MixedAnswers(t *testing.T) {
	// 4 questions, topics {T1:2, T2:2}, correct = A,B,C,D.
	qs := questionSet("T1", "T1", "T2", "T2")
	answers := model.AnswerMap{
		qs[0].ID.String(): model.AnswerA,          // correct (T1)
		qs[1].ID.String(): model.AnswerC,          // wrong (T1)
		qs[2].ID.String(): model.AnswerUnanswered, // blank (T2)
		qs[3].ID.String(): model.AnswerD,          // correct (T2)
	}

	res := Score(qs, answers, 0.25)

	if res.CorrectCount != 2 || res.WrongCount != 1 || res.BlankCount != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/1/1", res.CorrectCount, res.WrongCount, res.BlankCount)
	}
	if !approxEqual(res.ScoreTotal, 43.75) {
		t.Errorf("ScoreTotal = %v, want 43.75", res.ScoreTotal)
	}
	if len(res.ScoreByTopic) != 2 {
		t.Fatalf("got %d topics, want 2", len(res.ScoreByTopic))
	}
	for _, ts := range res.ScoreByTopic {
		if !approxEqual(ts.Score, 50) {
			t.Errorf("topic %s score = %v, want 50", ts.Topic, ts.Score)
		}
	}
}

func TestScore_AllBlank(t *testing.T) {
	qs := questionSet("T", "T", "T", "T", "T", "T", "T", "T", "T", "T")

	res := Score(qs, model.AnswerMap{}, 0.25)

	if res.ScoreTotal != 0 {
		t.Errorf("ScoreTotal = %v, want 0", res.ScoreTotal)
	}
	if res.CorrectCount != 0 || res.WrongCount != 0 || res.BlankCount != 10 {
		t.Errorf("counts = %d/%d/%d, want 0/0/10", res.CorrectCount, res.WrongCount, res.BlankCount)
	}
}

func TestScore_NegativeClampedToZero(t *testing.T) {
	// negativeMark=1, 1 correct + 9 wrong out of 10: raw = -80, clamped to 0.
	qs := questionSet("T", "T", "T", "T", "T", "T", "T", "T", "T", "T")
	answers := make(model.AnswerMap, len(qs))
	answers[qs[0].ID.String()] = qs[0].Correct
	for _, q := range qs[1:] {
		wrong := model.AnswerA
		if q.Correct == model.AnswerA {
			wrong = model.AnswerB
		}
		answers[q.ID.String()] = wrong
	}

	res := Score(qs, answers, 1)

	if res.ScoreTotal != 0 {
		t.Errorf("ScoreTotal = %v, want 0", res.ScoreTotal)
	}
	if res.CorrectCount != 1 || res.WrongCount != 9 || res.BlankCount != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/9/0", res.CorrectCount, res.WrongCount, res.BlankCount)
	}
}

func TestScore_UnknownAnswerKeysIgnored(t *testing.T) {
	qs := questionSet("T")
	answers := model.AnswerMap{
		qs[0].ID.String(): qs[0].Correct,
		uuid.NewString():  model.AnswerB, // stale client state
	}

	res := Score(qs, answers, 0.25)

	if res.CorrectCount != 1 || res.WrongCount != 0 || res.BlankCount != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/0/0", res.CorrectCount, res.WrongCount, res.BlankCount)
	}
	if res.ScoreTotal != 100 {
		t.Errorf("ScoreTotal = %v, want 100", res.ScoreTotal)
	}
}

func TestScore_BoundsAndCountInvariant(t *testing.T) {
	cases := []struct {
		name string
		qs   []QuestionKey
		fill func([]QuestionKey) model.AnswerMap
		mark float64
	}{
		{"all correct", questionSet("A", "B", "C"), func(qs []QuestionKey) model.AnswerMap {
			m := model.AnswerMap{}
			for _, q := range qs {
				m[q.ID.String()] = q.Correct
			}
			return m
		}, 0},
		{"all wrong full penalty", questionSet("A", "B"), func(qs []QuestionKey) model.AnswerMap {
			m := model.AnswerMap{}
			for _, q := range qs {
				wrong := model.AnswerA
				if q.Correct == model.AnswerA {
					wrong = model.AnswerB
				}
				m[q.ID.String()] = wrong
			}
			return m
		}, 1},
		{"half blank", questionSet("A", "B", "C", "D"), func(qs []QuestionKey) model.AnswerMap {
			m := model.AnswerMap{}
			m[qs[0].ID.String()] = qs[0].Correct
			m[qs[1].ID.String()] = qs[1].Correct
			return m
		}, 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(tc.qs, tc.fill(tc.qs), tc.mark)
			if res.ScoreTotal < 0 || res.ScoreTotal > 100 {
				t.Errorf("ScoreTotal = %v, out of [0,100]", res.ScoreTotal)
			}
			if sum := res.CorrectCount + res.WrongCount + res.BlankCount; sum != len(tc.qs) {
				t.Errorf("count sum = %d, want %d", sum, len(tc.qs))
			}
			if len(res.Outcomes) != len(tc.qs) {
				t.Errorf("got %d outcomes, want %d", len(res.Outcomes), len(tc.qs))
			}
		})
	}
}

func TestScore_OutcomesBlankNotCorrect(t *testing.T) {
	qs := questionSet("T", "T")
	answers := model.AnswerMap{qs[0].ID.String(): qs[0].Correct}

	res := Score(qs, answers, 0.25)

	byID := make(map[uuid.UUID]bool, len(res.Outcomes))
	for _, o := range res.Outcomes {
		byID[o.QuestionID] = o.WasCorrect
	}
	if !byID[qs[0].ID] {
		t.Error("answered-correct question reported as not correct")
	}
	if byID[qs[1].ID] {
		t.Error("blank question reported as correct")
	}
}

func TestScore_EmptyQuestionSetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on empty question set")
		}
	}()
	Score(nil, model.AnswerMap{}, 0.25)
}
