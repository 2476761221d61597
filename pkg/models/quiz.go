package models

// QuizQuestion is one generated question/answer pair before it becomes a
// persisted assessment
type QuizQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Evaluation is the graded outcome of a single answer
type Evaluation struct {
	Score     float64 `json:"score"`
	IsCorrect bool    `json:"is_correct"`
	Feedback  string  `json:"feedback"`
}
