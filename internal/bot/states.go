package bot

import "github.com/example/studyagent/pkg/models"

// Stage identifies what the bot expects next from a chat.
type Stage int

const (
	// StageIdle means no conversation is in flight; only commands matter.
	StageIdle Stage = iota
	// StageAwaitingRepoURL means the next text message is a repository URL.
	StageAwaitingRepoURL
	// StageQuiz means the next text message answers the current question.
	StageQuiz
)

// ConvState is one chat's conversation state. Values are immutable; every
// transition returns a new state.
type ConvState struct {
	Stage       Stage
	SessionID   int64
	TopicTitle  string
	Assessments []models.Assessment
	Current     int
}

func idleState() ConvState {
	return ConvState{Stage: StageIdle}
}

func awaitingRepoState() ConvState {
	return ConvState{Stage: StageAwaitingRepoURL}
}

func quizState(sessionID int64, topicTitle string, assessments []models.Assessment) ConvState {
	return ConvState{
		Stage:       StageQuiz,
		SessionID:   sessionID,
		TopicTitle:  topicTitle,
		Assessments: assessments,
	}
}

// CurrentAssessment returns the question awaiting an answer
func (s ConvState) CurrentAssessment() (models.Assessment, bool) {
	if s.Stage != StageQuiz || s.Current >= len(s.Assessments) {
		return models.Assessment{}, false
	}
	return s.Assessments[s.Current], true
}

// Advance moves to the next question. done is true when the quiz is
// exhausted, in which case the returned state is idle.
func (s ConvState) Advance() (next ConvState, done bool) {
	if s.Stage != StageQuiz {
		return idleState(), true
	}
	s.Current++
	if s.Current >= len(s.Assessments) {
		return idleState(), true
	}
	return s, false
}

// QuestionNumber is the 1-based position of the current question
func (s ConvState) QuestionNumber() int {
	return s.Current + 1
}

// TotalQuestions is the quiz length
func (s ConvState) TotalQuestions() int {
	return len(s.Assessments)
}
