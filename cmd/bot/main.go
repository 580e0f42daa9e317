// Package main contains the entrypoint for the broadcast bot.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"

	"github.com/edgard/rosterbot/internal/bot"
	"github.com/edgard/rosterbot/internal/bot/handlers"
	"github.com/edgard/rosterbot/internal/bot/tasks"
	"github.com/edgard/rosterbot/internal/broadcast"
	"github.com/edgard/rosterbot/internal/compose"
	"github.com/edgard/rosterbot/internal/config"
	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/httpapi"
	"github.com/edgard/rosterbot/internal/logger"
	"github.com/edgard/rosterbot/internal/reconcile"
	"github.com/edgard/rosterbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to an optional dotenv file with BOT_* variables")
	flag.Parse()

	// Variables already set in the environment win over the dotenv file.
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("Failed to load dotenv file", "path", *envPath, "error", err)
		return 1
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Error("Failed to connect to database", "driver", cfg.Database.Driver,
			"database", database.ExtractDBNameFromPath(cfg.Database.DSN), "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	// The fallback handler needs components that can only be built once the
	// bot identity is known, so it is bound after construction.
	var fallback tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if fallback != nil {
				fallback(ctx, b, update)
			}
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	gateway := telegram.NewGateway(tg, telegram.GatewayOptions{
		RequestTimeout: cfg.Telegram.RequestTimeout,
		MaxRetries:     cfg.Telegram.MaxRetries,
		MaxRetryAfter:  cfg.Telegram.MaxRetryAfter,
		ParseMode:      models.ParseMode(cfg.Telegram.ParseMode),
	}, log)

	mode, err := broadcast.ParseMode(cfg.Broadcast.Mode)
	if err != nil {
		log.Error("Invalid broadcast mode", "error", err)
		return 1
	}
	settings := broadcast.NewSettings(broadcast.Options{
		TargetMembers: cfg.Broadcast.TargetMembers,
		TargetChat:    cfg.Broadcast.TargetChat,
		Network:       cfg.Broadcast.Network,
		Mode:          mode,
	})

	targetChatID := cfg.Telegram.TargetChatID
	directory := reconcile.NewDirectory(store, gateway, settings, cfg.Telegram.BotInfo.ID, cfg.Reconcile.ChatInterval, log)
	roster := reconcile.NewRoster(store, gateway, targetChatID, cfg.Reconcile.MemberInterval, log)
	dispatcher := broadcast.NewDispatcher(settings, broadcast.NewResolver(store, targetChatID), gateway,
		broadcast.DispatchOptions{
			DirectInterval: cfg.Broadcast.DirectInterval,
			ChatInterval:   cfg.Broadcast.ChatInterval,
		}, log)

	hDeps := handlers.HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Store:      store,
		Gateway:    gateway,
		Settings:   settings,
		Dispatcher: dispatcher,
		Directory:  directory,
		Roster:     roster,
		Sessions:   compose.NewRegistry(),
	}
	fallback = handlers.NewDefaultHandler(hDeps)
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:    log,
		Store:     store,
		Directory: directory,
		Roster:    roster,
		Config:    cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var httpServer bot.Runner
	if cfg.HTTP.Enabled {
		httpServer = httpapi.NewServer(cfg.HTTP.Addr, store, settings, targetChatID, cfg.Broadcast.TopChats, log)
	}

	app := bot.NewBot(log, tg, sched, httpServer)

	log.Info("Starting bot", "target_chat_id", targetChatID)
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully")
	return 0
}
