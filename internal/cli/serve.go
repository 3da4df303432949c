package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/payment"
	"storefront/internal/realtime"
	"storefront/internal/redisx"
	"storefront/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppEnv
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, disconnect, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer disconnect()
		log.Println("[SERVER] [INFO] MongoDB connected to:", db.Name())

		if err := database.EnsureIndexes(ctx, db); err != nil {
			log.Println("[SERVER] [WARN] index setup:", err)
		}

		rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()

		var publisher events.Publisher = events.NopPublisher{}
		if len(cfg.KafkaBrokers) > 0 {
			publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, 0)
			log.Println("[SERVER] [INFO] publishing events to", cfg.KafkaBrokers)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Println("[SERVER] [WARN] publisher close:", err)
			}
		}()

		hub := realtime.NewHub(cfg.CORSOrigins)
		defer hub.Close()

		deps := handlers.Dependencies{
			Config:        cfg,
			Users:         store.NewUsers(db),
			RefreshTokens: store.NewRefreshTokens(db),
			Addresses:     store.NewAddresses(db),
			Products:      store.NewProducts(db),
			Categories:    store.NewCategories(db),
			Orders:        store.NewOrders(db),
			Cart:          redisx.NewCartStore(rdb, cfg.CartTTL),
			Idempotency:   redisx.NewIdempotency(rdb),
			Hub:           hub,
			Events:        events.NewEmitter(publisher, cfg.ServiceName),
			HealthChecks: map[string]handlers.HealthCheck{
				"mongo": database.Pinger(db),
				"redis": redisx.Pinger(rdb),
			},
		}
		if cfg.PaymentsEnabled() {
			deps.Payments = payment.NewClient(payment.Config{
				KeyID:         cfg.RazorpayKeyID,
				KeySecret:     cfg.RazorpayKeySecret,
				WebhookSecret: cfg.RazorpayWebhookSecret,
				BaseURL:       cfg.RazorpayBaseURL,
			}, &http.Client{Timeout: 10 * time.Second})
		} else {
			log.Println("[SERVER] [WARN] Razorpay credentials missing, payment routes return 503")
		}

		addr := serveAddr
		if addr == "" {
			addr = ":" + cfg.Port
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           handlers.NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Println("[SERVER] [INFO] listening on", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Println("[SERVER] [INFO] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :$PORT)")
	rootCmd.AddCommand(serveCmd)
}
