package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"prop_support_bot/internal/ai"
	"prop_support_bot/internal/config"
	"prop_support_bot/internal/domain"
	"prop_support_bot/internal/health"
	"prop_support_bot/internal/kb"
	"prop_support_bot/internal/logging"
	"prop_support_bot/internal/menu"
	"prop_support_bot/internal/metrics"
	"prop_support_bot/internal/orchestrator"
	"prop_support_bot/internal/store"
	"prop_support_bot/internal/telegram"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	healthShutdownTimeout   = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
		"qa_path":  cfg.QAPath,
	}).Info("configuration loaded")

	knowledge, err := kb.Load(cfg.QAPath)
	if err != nil {
		logger.WithError(err).Error("knowledge base load error")
		fmt.Fprintf(os.Stderr, "knowledge base load error: %v\n", err)
		os.Exit(1)
	}

	logger.WithFields(logging.Fields{
		"event":   "kb_loaded",
		"entries": knowledge.Len(),
	}).Info("knowledge base loaded")

	if missing := knowledge.Uncovered(menu.PredefinedQuestions()); len(missing) > 0 {
		logger.WithFields(logging.Fields{
			"event":     "kb_coverage_gap",
			"missing":   len(missing),
			"questions": missing,
		}).Warn("predefined menu questions without a canned answer will fall through to the generator")
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	generator, err := ai.NewGenerator(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("generator setup error")
		fmt.Fprintf(os.Stderr, "generator setup error: %v\n", err)
		os.Exit(1)
	}

	tgClient, err := telegram.NewClient(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	pipelineMetrics := metrics.New(prometheus.DefaultRegisterer)

	orc, err := orchestrator.New(orchestrator.Deps{
		Transport:  tgClient,
		Knowledge:  knowledge,
		Generator:  generator,
		Users:      domain.NewUserRepository(mongoManager.Users()),
		Log:        domain.NewMessageRepository(mongoManager.Messages()),
		DailyLimit: cfg.DailyLimit,
		Sentinel:   ai.InsufficientInfoSentinel,
		Metrics:    pipelineMetrics,
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Error("orchestrator setup error")
		fmt.Fprintf(os.Stderr, "orchestrator setup error: %v\n", err)
		os.Exit(1)
	}
	tgClient.Bind(orc)

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	statsProvider := store.NewStatsProvider(mongoManager.Users(), mongoManager.Messages())
	healthServer := health.NewServer(cfg.HTTPPort, mongoManager, statsProvider, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
