package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/benefits-gateway/internal/config"
	"github.com/ehr/benefits-gateway/internal/domain/chat"
	"github.com/ehr/benefits-gateway/internal/domain/directory"
	"github.com/ehr/benefits-gateway/internal/domain/intake"
	"github.com/ehr/benefits-gateway/internal/platform/auth"
	"github.com/ehr/benefits-gateway/internal/platform/chatbot"
	"github.com/ehr/benefits-gateway/internal/platform/db"
	"github.com/ehr/benefits-gateway/internal/platform/middleware"
	"github.com/ehr/benefits-gateway/internal/platform/websocket"
	"github.com/ehr/benefits-gateway/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway-server",
		Short: "Benefits real-time gateway",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, err := openMigrator()
			if err != nil {
				return err
			}
			defer migrator.Close()

			v, err := migrator.Up()
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Database at version %d.\n", v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, err := openMigrator()
			if err != nil {
				return err
			}
			defer migrator.Close()

			statuses, dirty, err := migrator.Status()
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %s\n", "VERSION", "STATUS")
			fmt.Println("---------- ----------")
			for _, s := range statuses {
				status := "pending"
				if s.Applied {
					status = "applied"
				}
				fmt.Printf("%-10d %s\n", s.Version, status)
			}
			if dirty {
				fmt.Println("WARNING: database is dirty; the last migration failed part way.")
			}
			return nil
		},
	})

	return cmd
}

func openMigrator() (*db.Migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewMigrator(cfg.DatabaseURL, migrations.FS)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Token verification
	verifier, err := auth.NewJWTVerifier(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure token verification")
	}

	// Chatbot sessions
	var sessions chatbot.SessionStore
	switch cfg.SessionStore {
	case "redis":
		rs, err := chatbot.NewRedisStore(ctx, chatbot.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rs.Close()
		sessions = rs
		logger.Info().Str("addr", cfg.RedisAddr).Msg("chatbot sessions stored in redis")
	default:
		sessions = chatbot.NewMemoryStore(cfg.SessionTTL)
	}

	// Domain services
	directorySvc := directory.NewService(
		directory.NewHolderRepoPG(pool),
		directory.NewBeneficiaryRepoPG(pool),
		directory.NewCityRepoPG(pool),
		directory.NewSpecialtyRepoPG(pool),
	)
	chatSvc := chat.NewService(chat.NewChatRepoPG(pool), chat.NewMessageRepoPG(pool))
	intakeSvc := intake.NewService(intake.NewRequestRepoPG(pool))

	machine := chatbot.NewMachine(&directoryAdapter{svc: directorySvc}, &intakeAdapter{svc: intakeSvc}, cfg.RedirectURL)

	// Real-time gateway
	hub := websocket.NewHub(logger)
	router := websocket.NewRouter(hub,
		&chatAdapter{svc: chatSvc},
		&appointmentAdapter{svc: intakeSvc},
		machine, sessions, cfg.WSFrameTimeout, logger)
	wsHandler := websocket.NewHandler(hub, router, verifier, logger, websocket.HandlerOptions{
		SendBuffer:  cfg.WSSendBuffer,
		CheckOrigin: websocket.AllowedOrigins(cfg.CORSOrigins),
	})

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{"Sec-WebSocket-Protocol", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"version": version,
			"online":  hub.ClientCount(),
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	wsHandler.RegisterRoutes(e)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	// Upgraded connections are hijacked and outlive Shutdown.
	hub.Close()
	logger.Info().Msg("server stopped")
	return nil
}
