package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studyagent/internal/database"
	"github.com/example/studyagent/internal/excel"
	"github.com/example/studyagent/internal/github"
	"github.com/example/studyagent/internal/study"
	"github.com/example/studyagent/pkg/models"
)

// Callback data prefixes
const (
	callbackStudyTopic   = "study:"
	callbackRemoveRepo   = "rmrepo:"
	callbackScheduleTime = "schedtime:"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "help":
		return b.handleHelp(message)
	case "addrepo":
		return b.handleAddRepo(message)
	case "listrepos":
		return b.handleListRepos(ctx, message)
	case "removerepo":
		return b.handleRemoveRepo(ctx, message)
	case "topics":
		return b.handleTopics(ctx, message)
	case "study":
		return b.handleStudy(ctx, message)
	case "stats":
		return b.handleStats(ctx, message)
	case "schedule":
		return b.handleSchedule(ctx, message)
	case "cancel":
		return b.handleCancel(ctx, message)
	case "export":
		return b.handleExport(ctx, message)
	default:
		return b.sendText(message.Chat.ID, "Unknown command. Use /help to see what I can do.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	from := message.From
	user, err := b.deps.Users.UpsertFromTelegram(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	log.Printf("User %d (@%s) started the bot", user.ID, user.Username)

	text := "👋 Welcome! I turn your GitHub repositories into study material.\n\n" +
		"1. Add a repository with /addrepo\n" +
		"2. I extract study topics from its markdown files\n" +
		"3. Quiz yourself with /study\n" +
		"4. I schedule reviews so you remember what you learned\n\n" +
		"Use /help for the full command list."
	return b.sendText(message.Chat.ID, text)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) error {
	text := "📖 Commands\n\n" +
		"📚 Repositories:\n" +
		"/addrepo - Track a GitHub repository\n" +
		"/listrepos - List tracked repositories\n" +
		"/removerepo - Stop tracking a repository\n" +
		"/topics - List extracted study topics\n\n" +
		"🎓 Studying:\n" +
		"/study - Start a quiz session\n" +
		"/cancel - Abandon the current session\n" +
		"/stats - Your progress per topic\n" +
		"/export - Download progress as a spreadsheet\n\n" +
		"⚙️ Reminders:\n" +
		"/schedule - Configure study reminders\n" +
		"/schedule off - Disable reminders"
	return b.sendText(message.Chat.ID, text)
}

func (b *Bot) handleAddRepo(message *tgbotapi.Message) error {
	b.setState(message.Chat.ID, awaitingRepoState())
	return b.sendText(message.Chat.ID,
		"📝 Send me the repository URL, e.g. https://github.com/owner/name\n\nUse /cancel to abort.")
}

func (b *Bot) handleListRepos(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, message)
	if err != nil || user == nil {
		return err
	}

	repos, err := b.deps.Repos.GetByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return b.sendText(message.Chat.ID, "You have no tracked repositories yet. Add one with /addrepo.")
	}

	var lines []string
	for _, r := range repos {
		synced := "never synced"
		if r.LastSyncedAt != nil {
			synced = "synced " + r.LastSyncedAt.Format("2006-01-02 15:04")
		}
		lines = append(lines, fmt.Sprintf("• %s (%s)", r.FullName(), synced))
	}
	return b.sendText(message.Chat.ID, "📚 Tracked repositories:\n\n"+strings.Join(lines, "\n"))
}

func (b *Bot) handleRemoveRepo(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, message)
	if err != nil || user == nil {
		return err
	}

	repos, err := b.deps.Repos.GetByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return b.sendText(message.Chat.ID, "Nothing to remove; you have no tracked repositories.")
	}

	var rows [][]MenuButton
	for _, r := range repos {
		rows = append(rows, []MenuButton{{
			Text:         r.FullName(),
			CallbackData: callbackRemoveRepo + strconv.FormatInt(r.ID, 10),
		}})
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, "Select the repository to remove:")
	msg.ReplyMarkup = createKeyboard(rows)
	return b.sendMessage(msg)
}

func (b *Bot) handleTopics(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, message)
	if err != nil || user == nil {
		return err
	}

	topics, err := b.deps.Topics.GetByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return b.sendText(message.Chat.ID, "No topics yet. Add a repository with /addrepo and I'll extract some.")
	}

	var lines []string
	for _, t := range topics {
		lines = append(lines, "• "+t.Title)
	}
	return b.sendText(message.Chat.ID, "📑 Your study topics:\n\n"+strings.Join(lines, "\n"))
}

func (b *Bot) handleStudy(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, message)
	if err != nil || user == nil {
		return err
	}

	topics, err := b.deps.Topics.GetByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return b.sendText(message.Chat.ID, "No topics to study yet. Add a repository with /addrepo first.")
	}

	due, err := b.deps.Tracker.TopicsDue(ctx, user.ID, nowUTC())
	if err != nil {
		return err
	}
	dueSet := make(map[int64]bool, len(due))
	for _, id := range due {
		dueSet[id] = true
	}

	var rows [][]MenuButton
	for _, t := range topics {
		label := t.Title
		if dueSet[t.ID] {
			label = "🔔 " + label
		}
		rows = append(rows, []MenuButton{{
			Text:         label,
			CallbackData: callbackStudyTopic + strconv.FormatInt(t.ID, 10),
		}})
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, "Pick a topic to study (🔔 marks topics due for review):")
	msg.ReplyMarkup = createKeyboard(rows)
	return b.sendMessage(msg)
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, message)
	if err != nil || user == nil {
		return err
	}

	rows, err := b.deps.Metrics.ProgressReport(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return b.sendText(message.Chat.ID, "No study history yet. Start with /study.")
	}

	var lines []string
	for _, r := range rows {
		line := fmt.Sprintf("📌 %s\n   %d sessions, %d/%d correct, avg %.0f%%",
			r.TopicTitle, r.TotalSessions, r.TotalCorrect, r.TotalQuestions, r.AverageScore*100)
		if r.NextReviewAt != nil {
			line += "\n   next review " + r.NextReviewAt.Format("2006-01-02")
		}
		lines = append(lines, line)
	}
	return b.sendText(message.Chat.ID, "📊 Your progress:\n\n"+strings.Join(lines, "\n\n"))
}

func (b *Bot) handleSchedule(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, message)
	if err != nil || user == nil {
		return err
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		return b.showScheduleMenu(ctx, message.Chat.ID, user.ID)
	}

	if strings.EqualFold(args[0], "off") {
		cfg, err := b.deps.Schedules.GetByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if cfg == nil {
			return b.sendText(message.Chat.ID, "Reminders are not configured.")
		}
		cfg.IsEnabled = false
		if err := b.deps.Schedules.Upsert(ctx, cfg); err != nil {
			return err
		}
		return b.sendText(message.Chat.ID, "🔕 Reminders disabled.")
	}

	preferred := args[0]
	if !validPreferredTime(preferred) {
		return b.sendText(message.Chat.ID, "That doesn't look like a time. Use HH:MM, e.g. /schedule 09:00 monday,friday")
	}
	days := ""
	if len(args) > 1 {
		days = strings.ToLower(args[1])
	}

	cfg := &models.ScheduleConfig{
		UserID:              user.ID,
		IsEnabled:           true,
		PreferredTime:       preferred,
		DaysOfWeek:          days,
		QuestionsPerSession: b.deps.QuestionsPerSession,
	}
	if err := b.deps.Schedules.Upsert(ctx, cfg); err != nil {
		return err
	}

	when := "every day"
	if days != "" {
		when = "on " + days
	}
	return b.sendText(message.Chat.ID, fmt.Sprintf("⏰ Reminders set for %s UTC %s.", preferred, when))
}

func (b *Bot) showScheduleMenu(ctx context.Context, chatID, userID int64) error {
	current := "Reminders are not configured."
	cfg, err := b.deps.Schedules.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	if cfg != nil && cfg.IsEnabled {
		when := "every day"
		if cfg.DaysOfWeek != "" {
			when = "on " + cfg.DaysOfWeek
		}
		current = fmt.Sprintf("Reminders are set for %s UTC %s.", cfg.PreferredTime, when)
	}

	var rows [][]MenuButton
	for _, slot := range []string{"08:00", "12:00", "18:00", "21:00"} {
		rows = append(rows, []MenuButton{{Text: slot + " UTC", CallbackData: callbackScheduleTime + slot}})
	}
	msg := tgbotapi.NewMessage(chatID, current+
		"\n\nPick a reminder time, or set your own with /schedule HH:MM [days], e.g. /schedule 09:30 monday,thursday")
	msg.ReplyMarkup = createKeyboard(rows)
	return b.sendMessage(msg)
}

func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message) error {
	state := b.state(message.Chat.ID)
	b.setState(message.Chat.ID, idleState())

	if state.Stage == StageQuiz {
		if err := b.deps.Manager.Cancel(ctx, state.SessionID); err != nil && !errors.Is(err, study.ErrSessionFinished) {
			log.Printf("Failed to cancel session %d: %v", state.SessionID, err)
		}
		return b.sendText(message.Chat.ID, "Session cancelled. It won't count toward your progress.")
	}
	return b.sendText(message.Chat.ID, "Nothing to cancel.")
}

func (b *Bot) handleExport(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, message)
	if err != nil || user == nil {
		return err
	}

	rows, err := b.deps.Metrics.ProgressReport(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return b.sendText(message.Chat.ID, "No study history to export yet.")
	}

	tmp, err := os.CreateTemp("", "progress-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := excel.ExportUserProgress(tmp.Name(), rows); err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FilePath(tmp.Name()))
	doc.Caption = "📊 Your study progress"
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("failed to send export: %w", err)
	}
	return nil
}

// handleText routes free-form messages by conversation state.
func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) error {
	state := b.state(message.Chat.ID)
	switch state.Stage {
	case StageAwaitingRepoURL:
		return b.handleRepoURL(ctx, message)
	case StageQuiz:
		return b.handleQuizAnswer(ctx, message, state)
	default:
		return b.sendText(message.Chat.ID, "I wasn't expecting that. Use /help to see the commands.")
	}
}

func (b *Bot) handleRepoURL(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, message)
	if err != nil || user == nil {
		return err
	}

	owner, name, err := github.ParseRepoURL(message.Text)
	if err != nil {
		return b.sendText(message.Chat.ID,
			"That doesn't look like a GitHub repository URL. Try again or /cancel.")
	}
	b.setState(message.Chat.ID, idleState())

	repo := &models.Repository{
		UserID:    user.ID,
		RepoURL:   fmt.Sprintf("https://github.com/%s/%s", owner, name),
		RepoOwner: owner,
		RepoName:  name,
	}
	if err := b.deps.Repos.Create(ctx, repo); err != nil {
		if errors.Is(err, database.ErrDuplicateRepository) {
			return b.sendText(message.Chat.ID, "You're already tracking that repository.")
		}
		return err
	}

	if err := b.sendText(message.Chat.ID, fmt.Sprintf("⏳ Syncing %s, this can take a minute...", repo.FullName())); err != nil {
		return err
	}

	count, err := b.deps.Syncer.Sync(ctx, repo.ID)
	if err != nil {
		log.Printf("Sync of repository %d failed: %v", repo.ID, err)
		return b.sendText(message.Chat.ID, "❌ Sync failed: "+syncErrorText(err))
	}
	if count == 0 {
		return b.sendText(message.Chat.ID,
			"Synced, but I couldn't extract any study topics. The repository may not have enough markdown documentation.")
	}
	return b.sendText(message.Chat.ID,
		fmt.Sprintf("✅ Extracted %d study topics from %s. See them with /topics or start with /study.", count, repo.FullName()))
}

func (b *Bot) handleQuizAnswer(ctx context.Context, message *tgbotapi.Message, state ConvState) error {
	assessment, ok := state.CurrentAssessment()
	if !ok {
		b.setState(message.Chat.ID, idleState())
		return b.sendText(message.Chat.ID, "The session is over. Start a new one with /study.")
	}

	eval, err := b.deps.Manager.SubmitAnswer(ctx, assessment.ID, message.Text)
	if err != nil {
		if errors.Is(err, study.ErrAlreadyAnswered) || errors.Is(err, study.ErrSessionFinished) {
			b.setState(message.Chat.ID, idleState())
			return b.sendText(message.Chat.ID, "That question is already closed. Start a new session with /study.")
		}
		log.Printf("Grading failed for assessment %d: %v", assessment.ID, err)
		return b.sendText(message.Chat.ID, "⚠️ I couldn't grade that answer, please send it again.")
	}

	var feedback string
	if eval.IsCorrect {
		feedback = fmt.Sprintf("✅ %.0f%% - %s", eval.Score*100, eval.Feedback)
	} else {
		feedback = fmt.Sprintf("❌ %.0f%% - %s\n\nExpected: %s", eval.Score*100, eval.Feedback, assessment.CorrectAnswer)
	}
	if err := b.sendText(message.Chat.ID, feedback); err != nil {
		return err
	}

	next, done := state.Advance()
	b.setState(message.Chat.ID, next)
	if !done {
		return b.sendQuestion(message.Chat.ID, next)
	}

	avg, err := b.deps.Manager.Complete(ctx, state.SessionID)
	if err != nil {
		return fmt.Errorf("failed to complete session %d: %w", state.SessionID, err)
	}
	return b.sendText(message.Chat.ID, fmt.Sprintf(
		"🏁 Session finished! Your score for \"%s\": %.0f%%.\n\nI'll remind you when it's time to review.",
		state.TopicTitle, avg*100))
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	// Acknowledge so the client stops the spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}

	data := query.Data
	switch {
	case strings.HasPrefix(data, callbackStudyTopic):
		return b.startQuiz(ctx, query, strings.TrimPrefix(data, callbackStudyTopic))
	case strings.HasPrefix(data, callbackRemoveRepo):
		return b.removeRepo(ctx, query, strings.TrimPrefix(data, callbackRemoveRepo))
	case strings.HasPrefix(data, callbackScheduleTime):
		return b.setScheduleTime(ctx, query, strings.TrimPrefix(data, callbackScheduleTime))
	}
	return nil
}

func (b *Bot) startQuiz(ctx context.Context, query *tgbotapi.CallbackQuery, topicIDArg string) error {
	chatID := query.Message.Chat.ID
	topicID, err := strconv.ParseInt(topicIDArg, 10, 64)
	if err != nil {
		return fmt.Errorf("bad topic callback %q: %w", topicIDArg, err)
	}

	user, err := b.deps.Users.GetByTelegramID(ctx, query.From.ID)
	if err != nil || user == nil {
		return b.sendText(chatID, "Please /start first.")
	}

	topic, err := b.deps.Topics.GetByID(ctx, topicID)
	if err != nil {
		return err
	}
	if topic == nil {
		return b.sendText(chatID, "That topic no longer exists; it may have been removed by a re-sync.")
	}

	session, err := b.deps.Manager.Start(ctx, user.ID, topicID, models.SessionTypeManual)
	if err != nil {
		return err
	}

	if err := b.sendText(chatID, fmt.Sprintf("🎓 Preparing questions for \"%s\"...", topic.Title)); err != nil {
		return err
	}

	assessments, err := b.deps.Manager.GenerateQuestions(ctx, session.ID, b.deps.QuestionsPerSession)
	if err != nil {
		if cancelErr := b.deps.Manager.Cancel(ctx, session.ID); cancelErr != nil {
			log.Printf("Failed to cancel session %d after generation failure: %v", session.ID, cancelErr)
		}
		if errors.Is(err, study.ErrNoQuestions) {
			return b.sendText(chatID, "I couldn't come up with questions for this topic. Try another one.")
		}
		log.Printf("Question generation failed for session %d: %v", session.ID, err)
		return b.sendText(chatID, "⚠️ Something went wrong preparing the quiz. Please try again later.")
	}

	state := quizState(session.ID, topic.Title, assessments)
	b.setState(chatID, state)
	return b.sendQuestion(chatID, state)
}

func (b *Bot) sendQuestion(chatID int64, state ConvState) error {
	assessment, ok := state.CurrentAssessment()
	if !ok {
		return nil
	}
	return b.sendText(chatID, fmt.Sprintf("❓ Question %d/%d\n\n%s",
		state.QuestionNumber(), state.TotalQuestions(), assessment.Question))
}

func (b *Bot) removeRepo(ctx context.Context, query *tgbotapi.CallbackQuery, idArg string) error {
	chatID := query.Message.Chat.ID
	repoID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("bad repo callback %q: %w", idArg, err)
	}

	user, err := b.deps.Users.GetByTelegramID(ctx, query.From.ID)
	if err != nil || user == nil {
		return b.sendText(chatID, "Please /start first.")
	}

	if err := b.deps.Repos.Delete(ctx, repoID, user.ID); err != nil {
		return b.sendText(chatID, "I couldn't remove that repository; it may already be gone.")
	}
	return b.sendText(chatID, "🗑 Repository removed, along with its topics.")
}

func (b *Bot) setScheduleTime(ctx context.Context, query *tgbotapi.CallbackQuery, slot string) error {
	chatID := query.Message.Chat.ID

	user, err := b.deps.Users.GetByTelegramID(ctx, query.From.ID)
	if err != nil || user == nil {
		return b.sendText(chatID, "Please /start first.")
	}

	cfg := &models.ScheduleConfig{
		UserID:              user.ID,
		IsEnabled:           true,
		PreferredTime:       slot,
		DaysOfWeek:          "",
		QuestionsPerSession: b.deps.QuestionsPerSession,
	}
	if err := b.deps.Schedules.Upsert(ctx, cfg); err != nil {
		return err
	}
	return b.sendText(chatID, fmt.Sprintf("⏰ Daily reminders set for %s UTC.", slot))
}

// requireUser resolves the sender to a registered user, prompting /start when
// unknown. A nil user with nil error means the prompt was sent.
func (b *Bot) requireUser(ctx context.Context, message *tgbotapi.Message) (*models.User, error) {
	user, err := b.deps.Users.GetByTelegramID(ctx, message.From.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, b.sendText(message.Chat.ID, "Please /start first so I know who you are.")
	}
	return user, nil
}

func syncErrorText(err error) string {
	switch {
	case errors.Is(err, github.ErrNotFound):
		return "the repository was not found. Is it private or misspelled?"
	case errors.Is(err, github.ErrAccessDenied):
		return "GitHub denied access. Check the token or try again later."
	case errors.Is(err, github.ErrTimeout):
		return "GitHub took too long to respond. Try again later."
	default:
		return "an unexpected error occurred. Try again later."
	}
}
