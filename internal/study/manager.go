// Package study drives one quiz session from creation through question
// generation and answer grading to completion, feeding the outcome into the
// performance tracker. Question sequencing is the caller's job; this package
// only guarantees assessments come back in creation order and that
// completion aggregates every answered one.
package study

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/studyagent/pkg/models"
)

var (
	// ErrTopicNotFound is returned when a session references a topic that no
	// longer exists (e.g. removed by a re-sync).
	ErrTopicNotFound = errors.New("topic not found")
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("study session not found")
	// ErrAssessmentNotFound is returned for unknown assessment IDs.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrAlreadyAnswered rejects a second submission for the same assessment.
	// Grades are written exactly once; resubmission is an error, not a replace.
	ErrAlreadyAnswered = errors.New("assessment already answered")
	// ErrSessionFinished rejects operations on a session in a terminal state,
	// including a second Complete call (the metrics idempotency guard).
	ErrSessionFinished = errors.New("study session already finished")
	// ErrNoQuestions is returned when the generator produced zero usable
	// questions for a topic.
	ErrNoQuestions = errors.New("no questions could be generated")
)

// QuestionGenerator produces quiz questions from topic content.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, topicTitle, topicContent string, n int) ([]models.QuizQuestion, error)
}

// AnswerGrader evaluates a user's answer against the expected one, with the
// topic content available as grading context.
type AnswerGrader interface {
	Grade(ctx context.Context, question, userAnswer, correctAnswer, topicContext string) (models.Evaluation, error)
}

// TopicStore provides topic lookups. Implementations return (nil, nil) when
// the topic does not exist.
type TopicStore interface {
	GetByID(ctx context.Context, id int64) (*models.Topic, error)
}

// SessionStore persists study sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.StudySession) error
	GetByID(ctx context.Context, id int64) (*models.StudySession, error)
	UpdateStatus(ctx context.Context, id int64, status string, completedAt *time.Time) error
}

// AssessmentStore persists assessments. GetBySession returns assessments in
// creation order. SaveEvaluation writes the one-shot grading mutation.
type AssessmentStore interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	GetByID(ctx context.Context, id int64) (*models.Assessment, error)
	GetBySession(ctx context.Context, sessionID int64) ([]models.Assessment, error)
	SaveEvaluation(ctx context.Context, id int64, userAnswer string, eval models.Evaluation, answeredAt time.Time) error
}

// SessionRecorder receives the completed session outcome. Satisfied by the
// progress tracker.
type SessionRecorder interface {
	RecordSession(ctx context.Context, userID, topicID int64, score float64, numQuestions int, studiedAt time.Time) error
}

// Manager is the quiz session state machine.
type Manager struct {
	generator   QuestionGenerator
	grader      AnswerGrader
	topics      TopicStore
	sessions    SessionStore
	assessments AssessmentStore
	recorder    SessionRecorder
	now         func() time.Time
}

// NewManager wires the state machine to its stores and collaborators
func NewManager(generator QuestionGenerator, grader AnswerGrader, topics TopicStore, sessions SessionStore, assessments AssessmentStore, recorder SessionRecorder) *Manager {
	return &Manager{
		generator:   generator,
		grader:      grader,
		topics:      topics,
		sessions:    sessions,
		assessments: assessments,
		recorder:    recorder,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start creates a new session in the in_progress state with no assessments
func (m *Manager) Start(ctx context.Context, userID, topicID int64, sessionType string) (*models.StudySession, error) {
	topic, err := m.topics.GetByID(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load topic %d: %w", topicID, err)
	}
	if topic == nil {
		return nil, ErrTopicNotFound
	}

	session := &models.StudySession{
		UserID:      userID,
		TopicID:     topicID,
		SessionType: sessionType,
		Status:      models.SessionStatusInProgress,
		StartedAt:   m.now(),
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create study session: %w", err)
	}

	log.Printf("Started %s study session %d for user %d on topic %d", sessionType, session.ID, userID, topicID)
	return session, nil
}

// GenerateQuestions asks the generator for n questions over the session's
// topic and stores one unanswered assessment per usable pair. Zero usable
// pairs is ErrNoQuestions; the caller decides whether to abandon the session.
func (m *Manager) GenerateQuestions(ctx context.Context, sessionID int64, n int) ([]models.Assessment, error) {
	session, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, ErrSessionFinished
	}

	topic, err := m.topics.GetByID(ctx, session.TopicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load topic %d: %w", session.TopicID, err)
	}
	if topic == nil {
		return nil, ErrTopicNotFound
	}

	questions, err := m.generator.GenerateQuestions(ctx, topic.Title, topic.Content, n)
	if err != nil {
		return nil, fmt.Errorf("question generation for session %d: %w", sessionID, err)
	}

	var created []models.Assessment
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			continue
		}
		a := models.Assessment{
			SessionID:     sessionID,
			Question:      q.Question,
			CorrectAnswer: q.Answer,
		}
		if err := m.assessments.Create(ctx, &a); err != nil {
			return nil, fmt.Errorf("failed to store assessment: %w", err)
		}
		created = append(created, a)
	}

	if len(created) == 0 {
		return nil, ErrNoQuestions
	}

	log.Printf("Generated %d questions for session %d (topic %q)", len(created), sessionID, topic.Title)
	return created, nil
}

// SubmitAnswer grades one answer and writes the evaluation exactly once.
// Submitting twice, or into a finished session, is rejected and leaves
// nothing modified.
func (m *Manager) SubmitAnswer(ctx context.Context, assessmentID int64, userAnswer string) (models.Evaluation, error) {
	var zero models.Evaluation

	assessment, err := m.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return zero, fmt.Errorf("failed to load assessment %d: %w", assessmentID, err)
	}
	if assessment == nil {
		return zero, ErrAssessmentNotFound
	}
	if assessment.Answered() {
		return zero, ErrAlreadyAnswered
	}

	session, err := m.getSession(ctx, assessment.SessionID)
	if err != nil {
		return zero, err
	}
	if session.IsTerminal() {
		return zero, ErrSessionFinished
	}

	// Topic content is grading context only; a vanished topic degrades to an
	// empty context rather than failing the submission.
	topicContext := ""
	if topic, err := m.topics.GetByID(ctx, session.TopicID); err == nil && topic != nil {
		topicContext = topic.Content
	}

	eval, err := m.grader.Grade(ctx, assessment.Question, userAnswer, assessment.CorrectAnswer, topicContext)
	if err != nil {
		return zero, fmt.Errorf("grading for assessment %d: %w", assessmentID, err)
	}

	if err := m.assessments.SaveEvaluation(ctx, assessmentID, userAnswer, eval, m.now()); err != nil {
		return zero, fmt.Errorf("failed to store evaluation: %w", err)
	}

	log.Printf("Graded assessment %d: score=%.2f correct=%v", assessmentID, eval.Score, eval.IsCorrect)
	return eval, nil
}

// Complete transitions the session to completed and records its outcome with
// the performance tracker, exactly once. The session score is the mean over
// answered assessments, 0.0 when none were answered. A second call is
// rejected with ErrSessionFinished so the session can never be counted twice.
func (m *Manager) Complete(ctx context.Context, sessionID int64) (float64, error) {
	session, err := m.getSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if session.IsTerminal() {
		return 0, ErrSessionFinished
	}

	assessments, err := m.assessments.GetBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to load assessments for session %d: %w", sessionID, err)
	}

	answered := 0
	sum := 0.0
	for _, a := range assessments {
		if a.Score != nil {
			answered++
			sum += *a.Score
		}
	}
	avgScore := 0.0
	if answered > 0 {
		avgScore = sum / float64(answered)
	}

	completedAt := m.now()
	if err := m.sessions.UpdateStatus(ctx, sessionID, models.SessionStatusCompleted, &completedAt); err != nil {
		return 0, fmt.Errorf("failed to complete session %d: %w", sessionID, err)
	}

	if err := m.recorder.RecordSession(ctx, session.UserID, session.TopicID, avgScore, answered, completedAt); err != nil {
		return 0, err
	}

	log.Printf("Completed session %d: avg_score=%.2f over %d answered questions", sessionID, avgScore, answered)
	return avgScore, nil
}

// Cancel moves a non-completed session to the cancelled terminal state.
// Cancelled sessions never reach the performance tracker.
func (m *Manager) Cancel(ctx context.Context, sessionID int64) error {
	session, err := m.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.IsTerminal() {
		return ErrSessionFinished
	}
	if err := m.sessions.UpdateStatus(ctx, sessionID, models.SessionStatusCancelled, nil); err != nil {
		return fmt.Errorf("failed to cancel session %d: %w", sessionID, err)
	}
	log.Printf("Cancelled session %d", sessionID)
	return nil
}

// Assessments returns the session's assessments in creation order
func (m *Manager) Assessments(ctx context.Context, sessionID int64) ([]models.Assessment, error) {
	return m.assessments.GetBySession(ctx, sessionID)
}

func (m *Manager) getSession(ctx context.Context, sessionID int64) (*models.StudySession, error) {
	session, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
