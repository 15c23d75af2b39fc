package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bilitrack/bilitrack/internal/account"
	"github.com/bilitrack/bilitrack/internal/api"
	"github.com/bilitrack/bilitrack/internal/bili"
	"github.com/bilitrack/bilitrack/internal/collector"
	"github.com/bilitrack/bilitrack/internal/config"
	"github.com/bilitrack/bilitrack/internal/crypto"
	"github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/metrics"
	"github.com/bilitrack/bilitrack/internal/notify"
	"github.com/bilitrack/bilitrack/internal/scheduler"
	"github.com/bilitrack/bilitrack/internal/store"
	"github.com/bilitrack/bilitrack/internal/wbi"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the BiliTrack server",
	Long: `Start the BiliTrack server.

This command starts the polling scheduler and the HTTP API that
manages tasks, accounts, and collected snapshots.

Example:
  bilitrack serve --config config.yaml`,
	RunE: runServe,
}

var serveFlags struct {
	Host string
	Port int
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if globalFlags.DBPath != "" {
		cfg.Database.Path = globalFlags.DBPath
	}

	logLevel := logging.LevelInfo
	if globalFlags.Verbose || cfg.Server.LogLevel == "debug" {
		logLevel = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.WithLevel(logLevel))

	key, err := crypto.ParseKey(cfg.Security.EncryptKey)
	if err != nil {
		return fmt.Errorf("invalid encrypt_key: %w", err)
	}

	st, err := store.NewSQLiteStoreWithRetention(cfg.Database.Path, cfg.Database.RetentionDays)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	signer := wbi.NewSigner()
	client := bili.NewClient(cfg.Bilibili.UserAgent, signer)
	if cfg.Bilibili.BaseURL != "" {
		client.SetBaseURL(cfg.Bilibili.BaseURL)
	}

	m := metrics.NewMetrics("bilitrack")
	accounts := account.NewService(st, client, key, logger)

	dispatcher := notify.NewDispatcher(logger, 30*time.Minute)
	if ch := telegramChannel(cfg, st, logger); ch != nil {
		dispatcher.AddChannel(ch)
	}

	coll := collector.New(st, client, accounts, logger)
	coll.SetNotifier(dispatcher)

	sched := scheduler.New(st, coll, accounts, m, logger, scheduler.Config{
		TickInterval:   cfg.Scheduler.TickInterval,
		MaxBatch:       cfg.Scheduler.MaxBatch,
		Workers:        cfg.Scheduler.Workers,
		FailureBackoff: cfg.Scheduler.FailureBackoff,
	})
	sched.SetNotifier(dispatcher)

	adjusted, err := sched.InitializeTaskSchedules()
	if err != nil {
		return fmt.Errorf("failed to initialize task schedules: %w", err)
	}
	if adjusted > 0 {
		logger.Info("task schedules initialized", "adjusted", adjusted)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loader.Watch(ctx); err != nil {
		logger.Warn("config watcher unavailable", "error", err.Error())
	}

	sched.Start(ctx)
	defer sched.Stop()

	server := api.NewServer(cfg.Server, cfg.API, st, sched, accounts, m, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	signals := api.SetupSignalHandler()
	select {
	case sig := <-signals:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		return &errors.ErrServerStart{Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort), Err: err}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return &errors.ErrServerShutdown{Err: err}
	}

	return nil
}

// telegramChannel builds the Telegram channel when configured. Settings
// stored by operators take precedence over the config file.
func telegramChannel(cfg *config.Config, st store.Store, logger *logging.Logger) notify.Channel {
	settings := st.Settings()

	token := cfg.Telegram.BotToken
	chatID := cfg.Telegram.ChatID
	enabled := cfg.Telegram.Enabled

	if stored, ok := settings.Get("telegram_bot_token"); ok && stored != "" {
		token = stored
		enabled = settings.GetBool("notify_enabled", enabled)
	}
	if stored := settings.GetInt("telegram_chat_id", 0); stored != 0 {
		chatID = int64(stored)
	}

	if !enabled || token == "" || chatID == 0 {
		return nil
	}

	ch, err := notify.NewTelegramChannel(token, chatID)
	if err != nil {
		logger.Warn("telegram channel unavailable", "error", err.Error())
		return nil
	}
	return ch
}
