package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/gotd/td/tg"
	telego "github.com/mymmrac/telego"

	"reposter-bot/internal/config"
	dbi "reposter-bot/internal/database"
	"reposter-bot/internal/history"
	"reposter-bot/internal/locales"
	"reposter-bot/internal/paraphrase"
	"reposter-bot/internal/pipeline"
	"reposter-bot/internal/report"
	tgclient "reposter-bot/internal/telegram"
	"reposter-bot/pkg/telegoapi"
)

func main() {
	clearHistory := flag.Bool("clear-history", false, "empty the sent-post history and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init(cfg.DefaultLang)

	if *clearHistory {
		history.Load(cfg.HistoryFile).Clear()
		return
	}

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.AppEnv,
		Release:     cfg.Version,
		Debug:       cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Load sent-post history
	historyStore := history.Load(cfg.HistoryFile)

	// Construct the paraphrase engine up front; no lazy client init.
	engine := paraphrase.New(
		paraphrase.NewClient(cfg.ParaphraseAPIKey, cfg.ParaphraseBaseURL),
		paraphrase.Params{
			Models:             cfg.ParaphraseModels,
			Temperature:        cfg.ParaphraseTemperature,
			TopP:               cfg.ParaphraseTopP,
			MaxTokens:          cfg.ParaphraseMaxTokens,
			FrequencyPenalty:   cfg.ParaphraseFrequencyPenalty,
			PresencePenalty:    cfg.ParaphrasePresencePenalty,
			SystemPrompt:       cfg.ParaphraseSystemPrompt,
			UserPromptTemplate: cfg.ParaphraseUserPrompt,
		},
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)

	// Optional published-post audit log
	var postLogger dbi.PostLogger
	if cfg.MongoDBURI != "" {
		client, db, err := dbi.ConnectDB(cfg)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal(err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
				sentry.CaptureException(err)
			}
		}()
		postLogger = dbi.NewMongoLogger(db)
	}

	// Optional report delivery bot
	var reportBot telegoapi.BotAPI
	if cfg.ReportBotToken != "" {
		bot, err := telego.NewBot(cfg.ReportBotToken, telego.WithDefaultLogger(false, false))
		if err != nil {
			sentry.CaptureException(err)
			log.Fatalf("Failed to create report bot: %v", err)
		}
		reportBot = bot
	}
	reporter := report.New(reportBot, cfg.ReportChatID, locales.NewLocalizer(cfg.DefaultLang))

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := tgclient.NewClient(cfg)
	err = client.Run(ctx, func(ctx context.Context) error {
		if err := tgclient.EnsureAuthorized(ctx, client); err != nil {
			return err
		}

		// Health-check the paraphrase API before touching any channel.
		log.Println("Checking paraphrase API key...")
		if err := engine.HealthCheck(ctx); err != nil {
			return err
		}
		log.Println("All checks passed")

		api := tg.NewClient(client)
		p, err := pipeline.New(pipeline.Deps{
			Fetcher:        tgclient.NewScanner(api, cfg),
			Rewriter:       engine,
			Dispatcher:     tgclient.NewDispatcher(api, cfg),
			History:        historyStore,
			PostLogger:     postLogger,
			SourceChannels: cfg.SourceChannels,
			TargetChannel:  cfg.TargetChannel,
			MinDelay:       cfg.MinDelay,
			MaxDelay:       cfg.MaxDelay,
		})
		if err != nil {
			return err
		}

		stats, runErr := p.Run(ctx)
		reporter.Publish(context.WithoutCancel(ctx), stats, historyStore.TotalSent())
		return runErr
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Println("Interrupted, shutting down.")
			return
		}
		sentry.CaptureException(err)
		log.Fatalf("Run failed: %v", err)
	}
}
