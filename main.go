package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studyagent/internal/ai"
	"github.com/example/studyagent/internal/bot"
	"github.com/example/studyagent/internal/config"
	"github.com/example/studyagent/internal/database"
	"github.com/example/studyagent/internal/github"
	"github.com/example/studyagent/internal/progress"
	"github.com/example/studyagent/internal/scheduler"
	"github.com/example/studyagent/internal/spaced_repetition"
	"github.com/example/studyagent/internal/study"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.DBType, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	users := database.NewUserRepository(db)
	repos := database.NewRepoRepository(db)
	topics := database.NewTopicRepository(db)
	sessions := database.NewSessionRepository(db)
	assessments := database.NewAssessmentRepository(db)
	metrics := database.NewMetricsRepository(db)
	schedules := database.NewScheduleRepository(db)

	gemini, err := ai.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer gemini.Close()

	tracker := progress.NewTracker(metrics, spaced_repetition.New())
	manager := study.NewManager(gemini, gemini, topics, sessions, assessments, tracker)
	syncer := github.NewSyncer(github.NewClient(cfg.GitHubToken), gemini, repos, topics, cfg.MinTopicWords)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram bot: %v", err)
	}

	tgBot := bot.New(api, bot.Deps{
		Users:               users,
		Repos:               repos,
		Topics:              topics,
		Schedules:           schedules,
		Metrics:             metrics,
		Tracker:             tracker,
		Manager:             manager,
		Syncer:              syncer,
		QuestionsPerSession: cfg.QuestionsPerSession,
	})

	var trigger *scheduler.Trigger
	if cfg.EnableScheduler {
		trigger = scheduler.NewTrigger(tgBot, schedules, tracker, topics)
		if err := trigger.Start(); err != nil {
			log.Fatalf("Failed to start notification trigger: %v", err)
		}
	} else {
		log.Println("Notification trigger disabled by configuration")
	}

	go tgBot.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	tgBot.Stop()
	if trigger != nil {
		trigger.Stop()
	}
}
