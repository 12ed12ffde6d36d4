package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/YouXam/ucloud-bot/internal/config"
	"github.com/YouXam/ucloud-bot/internal/constants"
	"github.com/YouXam/ucloud-bot/internal/database"
	"github.com/YouXam/ucloud-bot/internal/handlers"
	"github.com/YouXam/ucloud-bot/internal/middleware"
	"github.com/YouXam/ucloud-bot/internal/repository"
	"github.com/YouXam/ucloud-bot/internal/services"
	"github.com/YouXam/ucloud-bot/internal/telegram"
	"github.com/YouXam/ucloud-bot/internal/upstream"
	"github.com/YouXam/ucloud-bot/internal/utils"
)

// app holds everything the subcommands share.
type app struct {
	cfg         *config.Config
	bot         *telegram.Bot
	accounts    *services.AccountService
	submissions *services.SubmissionService
	escalation  *services.EscalationService
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "ucloud-bot",
	Short: "Telegram bot for the ucloud assignment portal",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the webhook and run reminder ticks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return current.serve(ctx)
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one reminder tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := current.escalation.Tick(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println(report.String())
		return nil
	},
}

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Telegram webhook registration",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Register PUBLIC_URL with Telegram",
	RunE: func(cmd *cobra.Command, args []string) error {
		if current.cfg.PublicURL == "" {
			return errors.New("PUBLIC_URL is not set")
		}
		url := current.cfg.PublicURL + constants.WebhookPath
		if err := current.bot.SetWebhook(cmd.Context(), url); err != nil {
			return err
		}
		jww.INFO.Printf("Webhook registered at %s", url)
		return nil
	},
}

func init() {
	webhookCmd.AddCommand(webhookSetCmd)
	rootCmd.AddCommand(serveCmd, tickCmd, webhookCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		jww.FATAL.Println(err)
		os.Exit(1)
	}
}

func setup() (*app, error) {
	// Load configuration
	cfg := config.Load()
	cfg.ApplyLogLevel()

	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is not set")
	}
	if len(cfg.UpstreamEndpoints) == 0 {
		return nil, errors.New("UPSTREAM_ENDPOINTS is not set")
	}

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		return nil, err
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		return nil, err
	}

	sealer, err := utils.NewSealer(cfg.CredentialKey)
	if err != nil {
		return nil, err
	}
	if cfg.CredentialKey == "" {
		jww.WARN.Println("CREDENTIAL_KEY is not set, portal passwords are stored in plain text")
	}

	bot, err := telegram.New(cfg.BotToken, cfg.BotSecret, cfg.TelegramRateLimit)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	interactive := upstream.NewClient(upstream.NewDispatcher(cfg.UpstreamEndpoints, httpClient))
	scheduled := upstream.NewClient(upstream.NewDispatcher(cfg.ScheduleEndpoints, httpClient))

	db := database.GetDB()
	users := repository.NewUserRepository(db, sealer)
	sessions := repository.NewSubmissionRepository(db)

	return &app{
		cfg:         cfg,
		bot:         bot,
		accounts:    services.NewAccountService(users, interactive, cfg.FileBaseURL),
		submissions: services.NewSubmissionService(users, sessions, interactive, bot),
		escalation:  services.NewEscalationService(users, scheduled, bot, cfg.FileBaseURL),
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set Gin mode
	gin.SetMode(a.cfg.GinMode)

	r := gin.New()
	r.Use(gin.Recovery())

	webhookHandler := handlers.NewWebhookHandler(a.accounts, a.submissions, a.bot)

	r.GET("/health", handlers.Health)
	r.POST(constants.WebhookPath, middleware.RequireWebhookSecret(a.cfg.BotSecret), webhookHandler.Handle)

	srv := &http.Server{
		Addr:    a.cfg.HTTPAddr,
		Handler: r,
	}

	ticks := make(chan struct{})
	go func() {
		defer close(ticks)
		a.runTicker(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		jww.INFO.Printf("Server starting on %s", a.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	jww.INFO.Println("Shutting down")
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		jww.WARN.Printf("Failed to shut down cleanly: %v", err)
	}

	<-ticks
	a.submissions.Wait()
	return serveErr
}

// runTicker runs reminder ticks until ctx ends. A zero interval disables them.
func (a *app) runTicker(ctx context.Context) {
	if a.cfg.TickInterval <= 0 {
		jww.INFO.Println("Reminder ticks disabled")
		return
	}

	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.escalation.Tick(ctx); err != nil && ctx.Err() == nil {
				jww.ERROR.Printf("Reminder tick failed: %v", err)
			}
		}
	}
}
