package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"direct-chat/internal/auth"
	"direct-chat/internal/cache"
	"direct-chat/internal/config"
	"direct-chat/internal/database"
	"direct-chat/internal/handlers"
	"direct-chat/internal/messaging"
	"direct-chat/internal/realtime"
	"direct-chat/internal/services"
	"direct-chat/pkg/logger"
	"direct-chat/pkg/snowflake"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Direct messaging server with presence and typing indicators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				logger.Error("%v", err)
				return err
			}
			cfg.SetPort(port)
			logger.Configure(cfg.Log.Level, cfg.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				logger.Error("Server error: %v", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port, overrides PORT")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, ids)
	if err != nil {
		return err
	}
	defer db.Close()

	hubOpts := realtime.Options{
		IdleThreshold: cfg.Presence.IdleThreshold,
		TypingWindow:  cfg.Presence.TypingWindow,
		SweepInterval: cfg.Presence.TypingSweepInterval,
	}

	// Optional Redis mirror for last-seen timestamps
	var lastSeen services.LastSeenLoader
	if cfg.Redis.Addr != "" {
		store := cache.NewLastSeen(cfg.Redis.Addr)
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			logger.Warn("Redis at %s unreachable, last seen will not persist: %v", cfg.Redis.Addr, err)
		} else {
			logger.Info("Mirroring last seen to Redis at %s", cfg.Redis.Addr)
			hubOpts.LastSeen = store
			lastSeen = store
		}
	}

	// Optional Kafka publication of persisted messages
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("Publishing messages to Kafka topic %s", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	// Initialize services
	hub := realtime.NewHub(hubOpts)
	authService := auth.NewService(db, cfg.JWT)
	messageService := services.NewMessageService(db, hub, publisher)
	userService := services.NewUserService(db, hub, lastSeen)

	// Initialize handlers
	router := &handlers.Router{
		Auth:         authService,
		AuthHandlers: handlers.NewAuthHandlers(authService),
		UserHandlers: handlers.NewUserHandlers(userService),
		MsgHandlers:  handlers.NewMessageHandlers(messageService),
		WSHandlers:   handlers.NewWebSocketHandlers(authService, hub, messageService, cfg.WebSocket.SendBuffer),
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(router.Handler()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error { return hub.Run(egCtx) })

	eg.Go(func() error {
		logger.Info("Server started on http://localhost%s", cfg.Server.Port)
		logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
		printAPIEndpoints()
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func openDatabase(ctx context.Context, cfg *config.Config, ids *snowflake.Node) (database.Database, error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return database.NewMemoryDB(ids), nil
	}
	return database.NewPostgresDB(ctx, cfg.Database.URL, ids)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("API endpoints:")
	logger.Info("   POST /auth/register")
	logger.Info("   POST /auth/login")
	logger.Info("   GET  /users/me")
	logger.Info("   GET  /users")
	logger.Info("   POST /messages/{peerId}")
	logger.Info("   GET  /messages/{peerId}?after={id}")
	logger.Info("   GET  /ws")
}
