package github

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/example/studyagent/pkg/models"
)

// ErrRepositoryNotFound is returned when the sync target does not exist.
var ErrRepositoryNotFound = errors.New("repository not found")

// DefaultMinTopicWords is the smallest file contribution worth keeping.
const DefaultMinTopicWords = 50

// ContentEnumerator is the slice of the GitHub client the syncer needs.
type ContentEnumerator interface {
	ListTree(ctx context.Context, owner, repo string) ([]TreeEntry, error)
	GetFileContent(ctx context.Context, owner, repo, path string) (string, error)
}

// TopicExtractor proposes topic groupings from a repository's README and
// file listing. Implemented by the Gemini client.
type TopicExtractor interface {
	ExtractTopics(ctx context.Context, readme string, filePaths []string) ([]models.TopicGrouping, error)
}

// RepositoryStore is the repository persistence the syncer needs.
type RepositoryStore interface {
	GetByID(ctx context.Context, id int64) (*models.Repository, error)
	TouchSynced(ctx context.Context, id int64, at time.Time) error
}

// TopicReplacer swaps a repository's full topic set atomically.
type TopicReplacer interface {
	ReplaceForRepository(ctx context.Context, repositoryID int64, topics []models.Topic) error
}

// Syncer runs the topic sync pipeline for one repository at a time.
type Syncer struct {
	content   ContentEnumerator
	extractor TopicExtractor
	repos     RepositoryStore
	topics    TopicReplacer
	minWords  int
	now       func() time.Time
}

// NewSyncer wires the pipeline. minWords <= 0 selects DefaultMinTopicWords.
func NewSyncer(content ContentEnumerator, extractor TopicExtractor, repos RepositoryStore, topics TopicReplacer, minWords int) *Syncer {
	if minWords <= 0 {
		minWords = DefaultMinTopicWords
	}
	return &Syncer{
		content:   content,
		extractor: extractor,
		repos:     repos,
		topics:    topics,
		minWords:  minWords,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sync rebuilds the repository's topic set from its current markdown files.
// Every network fetch happens before the stored topics are touched, so a
// failing GitHub or LLM call leaves the previous topic set intact. The
// replacement itself runs in a single transaction. Returns the number of
// topics stored.
func (s *Syncer) Sync(ctx context.Context, repositoryID int64) (int, error) {
	repo, err := s.repos.GetByID(ctx, repositoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to load repository %d: %w", repositoryID, err)
	}
	if repo == nil {
		return 0, ErrRepositoryNotFound
	}

	tree, err := s.content.ListTree(ctx, repo.RepoOwner, repo.RepoName)
	if err != nil {
		return 0, fmt.Errorf("sync of %s: %w", repo.FullName(), err)
	}

	paths := markdownPaths(tree)
	if len(paths) == 0 {
		log.Printf("Repository %s has no markdown files, clearing topics", repo.FullName())
		if err := s.topics.ReplaceForRepository(ctx, repositoryID, nil); err != nil {
			return 0, fmt.Errorf("failed to replace topics for repository %d: %w", repositoryID, err)
		}
		return 0, s.stamp(ctx, repositoryID)
	}

	readme := s.fetchReadme(ctx, repo, paths)

	groupings, err := s.extractor.ExtractTopics(ctx, readme, paths)
	if err != nil {
		return 0, fmt.Errorf("topic extraction for %s: %w", repo.FullName(), err)
	}

	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		known[p] = true
	}

	syncedAt := s.now()
	var built []models.Topic
	for _, g := range groupings {
		topic, err := s.buildTopic(ctx, repo, g, known, syncedAt)
		if err != nil {
			return 0, err
		}
		if topic != nil {
			built = append(built, *topic)
		}
	}

	// All fetches succeeded; now the destructive step.
	if err := s.topics.ReplaceForRepository(ctx, repositoryID, built); err != nil {
		return 0, fmt.Errorf("failed to replace topics for repository %d: %w", repositoryID, err)
	}
	if err := s.stamp(ctx, repositoryID); err != nil {
		return 0, err
	}

	log.Printf("Synced %s: %d topics from %d markdown files", repo.FullName(), len(built), len(paths))
	return len(built), nil
}

// buildTopic fetches a grouping's files and assembles the topic content.
// Files the LLM invented and files below the word floor are skipped; a
// grouping with nothing left yields nil. Fetch errors other than a vanished
// file abort the sync.
func (s *Syncer) buildTopic(ctx context.Context, repo *models.Repository, g models.TopicGrouping, known map[string]bool, syncedAt time.Time) (*models.Topic, error) {
	title := strings.TrimSpace(g.Title)
	if title == "" {
		return nil, nil
	}

	var b strings.Builder
	var kept []string
	for _, path := range g.Files {
		if !known[path] {
			log.Printf("Topic %q references unknown file %s, skipping", title, path)
			continue
		}
		text, err := s.content.GetFileContent(ctx, repo.RepoOwner, repo.RepoName, path)
		if errors.Is(err, ErrNotFound) {
			log.Printf("File %s vanished during sync of %s, skipping", path, repo.FullName())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s from %s: %w", path, repo.FullName(), err)
		}
		if wordCount(text) < s.minWords {
			continue
		}
		fmt.Fprintf(&b, "## File: %s\n\n%s\n\n", path, text)
		kept = append(kept, path)
	}

	if len(kept) == 0 {
		return nil, nil
	}

	content := b.String()
	sum := sha256.Sum256([]byte(content))
	pathsJSON, _ := json.Marshal(kept)

	return &models.Topic{
		RepositoryID: repo.ID,
		Title:        title,
		Content:      content,
		ContentHash:  hex.EncodeToString(sum[:]),
		FilePaths:    string(pathsJSON),
		LastSyncedAt: syncedAt,
	}, nil
}

// fetchReadme returns the root README's content, or "" when the repository
// has none. The README only steers topic extraction, so a failed fetch
// degrades rather than aborting.
func (s *Syncer) fetchReadme(ctx context.Context, repo *models.Repository, paths []string) string {
	var candidates []string
	for _, p := range paths {
		if strings.EqualFold(p, "readme.md") || strings.EqualFold(p, "readme.markdown") {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	text, err := s.content.GetFileContent(ctx, repo.RepoOwner, repo.RepoName, candidates[0])
	if err != nil {
		log.Printf("Failed to fetch README for %s: %v", repo.FullName(), err)
		return ""
	}
	return text
}

func (s *Syncer) stamp(ctx context.Context, repositoryID int64) error {
	if err := s.repos.TouchSynced(ctx, repositoryID, s.now()); err != nil {
		return fmt.Errorf("failed to stamp last sync for repository %d: %w", repositoryID, err)
	}
	return nil
}

func markdownPaths(tree []TreeEntry) []string {
	var out []string
	for _, e := range tree {
		if e.Type != "blob" {
			continue
		}
		lower := strings.ToLower(e.Path)
		if strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown") {
			out = append(out, e.Path)
		}
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
