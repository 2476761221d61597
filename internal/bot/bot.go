// Package bot is the Telegram transport: command handling, the per-chat
// conversation flow, and reminder delivery for the scheduler.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studyagent/internal/database"
	"github.com/example/studyagent/internal/github"
	"github.com/example/studyagent/internal/progress"
	"github.com/example/studyagent/internal/study"
)

// MenuButton represents a button in an inline menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Deps are the collaborators the bot drives.
type Deps struct {
	Users     *database.UserRepository
	Repos     *database.RepoRepository
	Topics    *database.TopicRepository
	Schedules *database.ScheduleRepository
	Metrics   *database.MetricsRepository
	Tracker   *progress.Tracker
	Manager   *study.Manager
	Syncer    *github.Syncer

	QuestionsPerSession int
}

// Bot represents the Telegram bot application.
type Bot struct {
	api  *tgbotapi.BotAPI
	deps Deps

	// Conversation state per chat. Updates arrive on a single goroutine, so
	// plain map access is safe.
	states map[int64]ConvState
}

// New creates a bot over an authorized API client
func New(api *tgbotapi.BotAPI, deps Deps) *Bot {
	if deps.QuestionsPerSession <= 0 {
		deps.QuestionsPerSession = 5
	}
	return &Bot{
		api:    api,
		deps:   deps,
		states: make(map[int64]ConvState),
	}
}

// Start consumes updates until the update channel closes
func (b *Bot) Start() {
	log.Printf("Bot authorized as @%s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	for update := range b.api.GetUpdatesChan(u) {
		b.handleUpdate(update)
	}
}

// Stop ends the update loop
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		err = b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		err = b.handleText(ctx, update.Message)
	}
	if err != nil {
		log.Printf("Failed to handle update: %v", err)
	}
}

func (b *Bot) state(chatID int64) ConvState {
	if s, ok := b.states[chatID]; ok {
		return s
	}
	return idleState()
}

func (b *Bot) setState(chatID int64, s ConvState) {
	if s.Stage == StageIdle {
		delete(b.states, chatID)
		return
	}
	b.states[chatID] = s
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) error {
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", msg.ChatID, err)
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// NotifyStudyReminder implements the scheduler's Notifier.
func (b *Bot) NotifyStudyReminder(userID int64) error {
	chatID, err := b.chatIDFor(userID)
	if err != nil {
		return err
	}
	return b.sendText(chatID, "⏰ Time to study! Use /study to pick a topic.")
}

// NotifyReviewsDue implements the scheduler's Notifier.
func (b *Bot) NotifyReviewsDue(userID int64, topicTitles []string) error {
	chatID, err := b.chatIDFor(userID)
	if err != nil {
		return err
	}
	text := "🔔 These topics are due for review:\n\n• " + strings.Join(topicTitles, "\n• ") +
		"\n\nUse /study to review them."
	return b.sendText(chatID, text)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func validPreferredTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func (b *Bot) chatIDFor(userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := b.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, fmt.Errorf("user %d not found", userID)
	}
	return user.TelegramID, nil
}
