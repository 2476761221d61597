package study

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/studyagent/pkg/models"
)

type fakeTopicStore struct {
	topics map[int64]*models.Topic
}

func (f *fakeTopicStore) GetByID(_ context.Context, id int64) (*models.Topic, error) {
	return f.topics[id], nil
}

type fakeSessionStore struct {
	sessions map[int64]*models.StudySession
	nextID   int64
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[int64]*models.StudySession), nextID: 1}
}

func (f *fakeSessionStore) Create(_ context.Context, s *models.StudySession) error {
	s.ID = f.nextID
	f.nextID++
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id int64) (*models.StudySession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) UpdateStatus(_ context.Context, id int64, status string, completedAt *time.Time) error {
	s, ok := f.sessions[id]
	if !ok {
		return errors.New("no such session")
	}
	s.Status = status
	s.CompletedAt = completedAt
	return nil
}

type fakeAssessmentStore struct {
	assessments map[int64]*models.Assessment
	order       []int64
	nextID      int64
}

func newFakeAssessmentStore() *fakeAssessmentStore {
	return &fakeAssessmentStore{assessments: make(map[int64]*models.Assessment), nextID: 1}
}

func (f *fakeAssessmentStore) Create(_ context.Context, a *models.Assessment) error {
	a.ID = f.nextID
	f.nextID++
	copied := *a
	f.assessments[a.ID] = &copied
	f.order = append(f.order, a.ID)
	return nil
}

func (f *fakeAssessmentStore) GetByID(_ context.Context, id int64) (*models.Assessment, error) {
	a, ok := f.assessments[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAssessmentStore) GetBySession(_ context.Context, sessionID int64) ([]models.Assessment, error) {
	var out []models.Assessment
	for _, id := range f.order {
		if a := f.assessments[id]; a.SessionID == sessionID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAssessmentStore) SaveEvaluation(_ context.Context, id int64, userAnswer string, eval models.Evaluation, answeredAt time.Time) error {
	a, ok := f.assessments[id]
	if !ok {
		return errors.New("no such assessment")
	}
	answer := userAnswer
	score := eval.Score
	correct := eval.IsCorrect
	feedback := eval.Feedback
	at := answeredAt
	a.UserAnswer = &answer
	a.Score = &score
	a.IsCorrect = &correct
	a.Feedback = &feedback
	a.AnsweredAt = &at
	return nil
}

type fakeGenerator struct {
	questions []models.QuizQuestion
	err       error
}

func (f *fakeGenerator) GenerateQuestions(_ context.Context, _, _ string, _ int) ([]models.QuizQuestion, error) {
	return f.questions, f.err
}

type gradeCall struct {
	question, userAnswer, correctAnswer, topicContext string
}

type fakeGrader struct {
	eval  models.Evaluation
	err   error
	calls []gradeCall
}

func (f *fakeGrader) Grade(_ context.Context, question, userAnswer, correctAnswer, topicContext string) (models.Evaluation, error) {
	f.calls = append(f.calls, gradeCall{question, userAnswer, correctAnswer, topicContext})
	return f.eval, f.err
}

type recorded struct {
	userID, topicID int64
	score           float64
	numQuestions    int
}

type fakeRecorder struct {
	records []recorded
	err     error
}

func (f *fakeRecorder) RecordSession(_ context.Context, userID, topicID int64, score float64, numQuestions int, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, recorded{userID, topicID, score, numQuestions})
	return nil
}

type fixture struct {
	manager     *Manager
	topics      *fakeTopicStore
	sessions    *fakeSessionStore
	assessments *fakeAssessmentStore
	generator   *fakeGenerator
	grader      *fakeGrader
	recorder    *fakeRecorder
}

func newFixture() *fixture {
	f := &fixture{
		topics: &fakeTopicStore{topics: map[int64]*models.Topic{
			10: {ID: 10, Title: "Goroutines", Content: "Goroutines are lightweight threads managed by the Go runtime."},
		}},
		sessions:    newFakeSessionStore(),
		assessments: newFakeAssessmentStore(),
		generator: &fakeGenerator{questions: []models.QuizQuestion{
			{Question: "What is a goroutine?", Answer: "A lightweight thread managed by the Go runtime."},
			{Question: "How do you start one?", Answer: "With the go keyword."},
		}},
		grader:   &fakeGrader{eval: models.Evaluation{Score: 0.8, IsCorrect: true, Feedback: "Mostly right."}},
		recorder: &fakeRecorder{},
	}
	f.manager = NewManager(f.generator, f.grader, f.topics, f.sessions, f.assessments, f.recorder)
	f.manager.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestStartCreatesInProgressSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, err := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.Status != models.SessionStatusInProgress {
		t.Errorf("Status = %q, want %q", session.Status, models.SessionStatusInProgress)
	}
	if session.ID == 0 {
		t.Error("session was not persisted")
	}

	got, _ := f.manager.Assessments(ctx, session.ID)
	if len(got) != 0 {
		t.Errorf("new session has %d assessments, want 0", len(got))
	}
}

func TestStartUnknownTopic(t *testing.T) {
	f := newFixture()

	if _, err := f.manager.Start(context.Background(), 1, 999, models.SessionTypeManual); !errors.Is(err, ErrTopicNotFound) {
		t.Fatalf("error = %v, want ErrTopicNotFound", err)
	}
}

func TestGenerateQuestionsStoresUnansweredAssessments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	created, err := f.manager.GenerateQuestions(ctx, session.ID, 2)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d assessments, want 2", len(created))
	}
	for i, a := range created {
		if a.Answered() {
			t.Errorf("assessment %d already answered", i)
		}
		if a.Question == "" || a.CorrectAnswer == "" {
			t.Errorf("assessment %d missing question or answer", i)
		}
	}
	if created[0].Question != "What is a goroutine?" {
		t.Errorf("assessments out of creation order: first is %q", created[0].Question)
	}
}

func TestGenerateQuestionsSkipsBlankPairs(t *testing.T) {
	f := newFixture()
	f.generator.questions = []models.QuizQuestion{
		{Question: "   ", Answer: "ignored"},
		{Question: "Real question?", Answer: "Real answer."},
		{Question: "No answer?", Answer: ""},
	}
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	created, err := f.manager.GenerateQuestions(ctx, session.ID, 3)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(created) != 1 || created[0].Question != "Real question?" {
		t.Fatalf("created = %+v, want only the usable pair", created)
	}
}

func TestGenerateQuestionsNoneUsable(t *testing.T) {
	f := newFixture()
	f.generator.questions = nil
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	if _, err := f.manager.GenerateQuestions(ctx, session.ID, 3); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("error = %v, want ErrNoQuestions", err)
	}
}

func TestSubmitAnswerGradesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	created, _ := f.manager.GenerateQuestions(ctx, session.ID, 2)

	eval, err := f.manager.SubmitAnswer(ctx, created[0].ID, "A lightweight thread.")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if eval.Score != 0.8 || !eval.IsCorrect {
		t.Errorf("eval = %+v, want score 0.8 correct", eval)
	}
	if len(f.grader.calls) != 1 {
		t.Fatalf("grader called %d times, want 1", len(f.grader.calls))
	}
	call := f.grader.calls[0]
	if call.correctAnswer != created[0].CorrectAnswer {
		t.Errorf("grader got correct answer %q, want %q", call.correctAnswer, created[0].CorrectAnswer)
	}
	if call.topicContext == "" {
		t.Error("grader did not receive topic content as context")
	}

	stored, _ := f.assessments.GetByID(ctx, created[0].ID)
	if !stored.Answered() || stored.Score == nil || *stored.Score != 0.8 {
		t.Fatalf("evaluation not persisted: %+v", stored)
	}

	// Resubmission must be rejected without touching the stored grade.
	if _, err := f.manager.SubmitAnswer(ctx, created[0].ID, "Changed my mind"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("resubmit error = %v, want ErrAlreadyAnswered", err)
	}
	after, _ := f.assessments.GetByID(ctx, created[0].ID)
	if *after.UserAnswer != "A lightweight thread." {
		t.Errorf("resubmission overwrote the answer: %q", *after.UserAnswer)
	}
	if len(f.grader.calls) != 1 {
		t.Errorf("grader called again on resubmission")
	}
}

func TestSubmitAnswerGraderFailureLeavesUnanswered(t *testing.T) {
	f := newFixture()
	f.grader.err = errors.New("model unavailable")
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	created, _ := f.manager.GenerateQuestions(ctx, session.ID, 2)

	if _, err := f.manager.SubmitAnswer(ctx, created[0].ID, "whatever"); err == nil {
		t.Fatal("expected grading error")
	}
	stored, _ := f.assessments.GetByID(ctx, created[0].ID)
	if stored.Answered() {
		t.Error("failed grading must leave the assessment unanswered")
	}
}

func TestSubmitAnswerAfterCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	created, _ := f.manager.GenerateQuestions(ctx, session.ID, 2)
	if _, err := f.manager.Complete(ctx, session.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if _, err := f.manager.SubmitAnswer(ctx, created[0].ID, "late"); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("error = %v, want ErrSessionFinished", err)
	}
}

func TestCompleteAveragesAnsweredOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	created, _ := f.manager.GenerateQuestions(ctx, session.ID, 2)

	f.grader.eval = models.Evaluation{Score: 1.0, IsCorrect: true}
	if _, err := f.manager.SubmitAnswer(ctx, created[0].ID, "a"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	f.grader.eval = models.Evaluation{Score: 0.5, IsCorrect: false}
	if _, err := f.manager.SubmitAnswer(ctx, created[1].ID, "b"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	avg, err := f.manager.Complete(ctx, session.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if math.Abs(avg-0.75) > 1e-9 {
		t.Errorf("avg = %v, want 0.75", avg)
	}

	if len(f.recorder.records) != 1 {
		t.Fatalf("recorder called %d times, want 1", len(f.recorder.records))
	}
	rec := f.recorder.records[0]
	if rec.userID != 1 || rec.topicID != 10 || rec.numQuestions != 2 {
		t.Errorf("recorded = %+v", rec)
	}
	if math.Abs(rec.score-0.75) > 1e-9 {
		t.Errorf("recorded score = %v, want 0.75", rec.score)
	}

	stored, _ := f.sessions.GetByID(ctx, session.ID)
	if stored.Status != models.SessionStatusCompleted || stored.CompletedAt == nil {
		t.Errorf("session not marked completed: %+v", stored)
	}
}

func TestCompleteWithNoAnswersScoresZero(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	if _, err := f.manager.GenerateQuestions(ctx, session.ID, 2); err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}

	avg, err := f.manager.Complete(ctx, session.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if avg != 0.0 {
		t.Errorf("avg = %v, want 0.0", avg)
	}
	if f.recorder.records[0].numQuestions != 0 {
		t.Errorf("numQuestions = %d, want 0", f.recorder.records[0].numQuestions)
	}
}

// A session can only be counted once, no matter how many Complete calls race in.
func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	created, _ := f.manager.GenerateQuestions(ctx, session.ID, 2)
	if _, err := f.manager.SubmitAnswer(ctx, created[0].ID, "a"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	if _, err := f.manager.Complete(ctx, session.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := f.manager.Complete(ctx, session.ID); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("second Complete error = %v, want ErrSessionFinished", err)
	}
	if len(f.recorder.records) != 1 {
		t.Errorf("recorder called %d times, want exactly 1", len(f.recorder.records))
	}
}

func TestCancelSkipsRecorder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, _ := f.manager.Start(ctx, 1, 10, models.SessionTypeManual)
	if _, err := f.manager.GenerateQuestions(ctx, session.ID, 2); err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}

	if err := f.manager.Cancel(ctx, session.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	stored, _ := f.sessions.GetByID(ctx, session.ID)
	if stored.Status != models.SessionStatusCancelled {
		t.Errorf("Status = %q, want cancelled", stored.Status)
	}
	if len(f.recorder.records) != 0 {
		t.Error("cancelled session must not reach the recorder")
	}

	if _, err := f.manager.Complete(ctx, session.ID); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("Complete after Cancel error = %v, want ErrSessionFinished", err)
	}
}

func TestUnknownSessionAndAssessment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.manager.Complete(ctx, 42); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Complete error = %v, want ErrSessionNotFound", err)
	}
	if _, err := f.manager.GenerateQuestions(ctx, 42, 3); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GenerateQuestions error = %v, want ErrSessionNotFound", err)
	}
	if _, err := f.manager.SubmitAnswer(ctx, 42, "x"); !errors.Is(err, ErrAssessmentNotFound) {
		t.Errorf("SubmitAnswer error = %v, want ErrAssessmentNotFound", err)
	}
}
