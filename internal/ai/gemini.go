// Package ai wraps the Gemini API for the three LLM tasks: grouping
// repository files into topics, generating quiz questions, and grading
// answers. Responses are requested as JSON; stray markdown fences around the
// payload are tolerated.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/example/studyagent/pkg/models"
)

// ErrLLM wraps every failure of the model call or of parsing its output.
var ErrLLM = errors.New("llm request failed")

// DefaultModel is the Gemini model used unless configured otherwise.
const DefaultModel = "gemini-1.5-flash"

// maxContentChars bounds how much topic content goes into a prompt.
const maxContentChars = 8000

// Gemini is the LLM collaborator.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates the client. modelName may be empty to use DefaultModel.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Gemini{client: client, model: client.GenerativeModel(modelName)}, nil
}

// Close releases the underlying client
func (g *Gemini) Close() error {
	return g.client.Close()
}

// ExtractTopics asks the model to group the repository's markdown files into
// study topics. An empty grouping list is a valid answer for thin repositories.
func (g *Gemini) ExtractTopics(ctx context.Context, readme string, filePaths []string) ([]models.TopicGrouping, error) {
	prompt := fmt.Sprintf(`You are organizing a code repository's documentation into study topics.

Repository README:
%s

Markdown files in the repository:
%s

Group these files into coherent study topics. Each topic needs a short
descriptive title and the list of files that belong to it. A file may appear
in at most one topic. Leave out files that are not worth studying (changelogs,
licenses, contribution guides).

Respond with a JSON array only, no other text:
[{"title": "Topic title", "files": ["path/one.md", "path/two.md"]}]`,
		truncate(readme, maxContentChars), strings.Join(filePaths, "\n"))

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseGroupings(raw)
}

// GenerateQuestions produces n open questions over the topic content
func (g *Gemini) GenerateQuestions(ctx context.Context, topicTitle, topicContent string, n int) ([]models.QuizQuestion, error) {
	prompt := fmt.Sprintf(`You are a tutor writing a quiz about "%s".

Study material:
%s

Write %d open-ended questions that test understanding of this material, each
with a concise model answer. Questions must be answerable from the material
alone.

Respond with a JSON array only, no other text:
[{"question": "...", "answer": "..."}]`,
		topicTitle, truncate(topicContent, maxContentChars), n)

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseQuestions(raw)
}

// Grade evaluates a user's answer against the expected one
func (g *Gemini) Grade(ctx context.Context, question, userAnswer, correctAnswer, topicContext string) (models.Evaluation, error) {
	prompt := fmt.Sprintf(`You are grading a quiz answer.

Question: %s
Expected answer: %s
Student's answer: %s

Reference material:
%s

Score the student's answer from 0.0 (completely wrong) to 1.0 (fully correct),
judging meaning rather than wording. Consider it correct when the score is
0.6 or higher. Give one or two sentences of feedback addressed to the student.

Respond with a JSON object only, no other text:
{"score": 0.0, "is_correct": false, "feedback": "..."}`,
		question, correctAnswer, userAnswer, truncate(topicContext, maxContentChars))

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return models.Evaluation{}, err
	}
	return parseEvaluation(raw)
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLM, err)
	}
	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrLLM)
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

func parseGroupings(raw string) ([]models.TopicGrouping, error) {
	var groupings []models.TopicGrouping
	if err := json.Unmarshal([]byte(extractJSON(raw, '[', ']')), &groupings); err != nil {
		return nil, fmt.Errorf("%w: unparseable topic groupings: %v", ErrLLM, err)
	}
	return groupings, nil
}

func parseQuestions(raw string) ([]models.QuizQuestion, error) {
	var questions []models.QuizQuestion
	if err := json.Unmarshal([]byte(extractJSON(raw, '[', ']')), &questions); err != nil {
		return nil, fmt.Errorf("%w: unparseable questions: %v", ErrLLM, err)
	}
	return questions, nil
}

func parseEvaluation(raw string) (models.Evaluation, error) {
	var eval models.Evaluation
	if err := json.Unmarshal([]byte(extractJSON(raw, '{', '}')), &eval); err != nil {
		return models.Evaluation{}, fmt.Errorf("%w: unparseable evaluation: %v", ErrLLM, err)
	}
	if eval.Score < 0 {
		eval.Score = 0
	}
	if eval.Score > 1 {
		eval.Score = 1
	}
	return eval, nil
}

// extractJSON strips markdown code fences and, failing that, cuts the
// outermost open..close span out of the surrounding prose.
func extractJSON(raw string, opening, closing byte) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	if len(s) > 0 && s[0] == opening {
		return s
	}
	start := strings.IndexByte(s, opening)
	end := strings.LastIndexByte(s, closing)
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
