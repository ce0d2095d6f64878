package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/cart"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/catalog"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/checkout"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/events"
	h "github.com/NelsonFranklinWere/floralgifts-sub000/internal/http"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/notify"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/payment"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/ratelimit"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/reconcile"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/repository"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/sweep"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Postgres repository.Credentials

	CatalogDBPath        string
	CatalogMigrationsDir string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	Daraja   payment.DarajaConfig
	BankGate payment.BankGateConfig

	Mail notify.MailConfig

	KafkaBrokers []string

	AdminAPIKey        string
	InitiatesPerMinute int
	RateLimitBackend   string

	SweepInterval time.Duration
	SweepCutoff   time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		Postgres: repository.Credentials{
			Host:              getEnv("POSTGRES_HOST", "localhost"),
			Port:              getEnvInt("POSTGRES_PORT", 5432),
			User:              getEnv("POSTGRES_USER", "floralgifts"),
			Password:          getEnv("POSTGRES_PASSWORD", "floralgifts"),
			DBName:            getEnv("POSTGRES_DB", "floralgifts"),
			MigrationsDirPath: getEnv("ORDERS_MIGRATIONS_DIR", "./migrations/orders"),
		},

		CatalogDBPath:        getEnv("CATALOG_DB_PATH", "./floralgifts.db"),
		CatalogMigrationsDir: getEnv("CATALOG_MIGRATIONS_DIR", "./migrations/catalog"),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "floralgifts"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		Daraja: payment.DarajaConfig{
			BaseURL:        getEnv("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    getEnv("DARAJA_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("DARAJA_CONSUMER_SECRET", ""),
			ShortCode:      getEnv("DARAJA_SHORT_CODE", ""),
			Passkey:        getEnv("DARAJA_PASSKEY", ""),
			CallbackURL:    getEnv("DARAJA_CALLBACK_URL", ""),
		},
		BankGate: payment.BankGateConfig{
			BaseURL:      getEnv("BANKGATE_BASE_URL", ""),
			APIKey:       getEnv("BANKGATE_API_KEY", ""),
			MerchantCode: getEnv("BANKGATE_MERCHANT_CODE", ""),
			SigningKey:   getEnv("BANKGATE_SIGNING_KEY", ""),
			CallbackURL:  getEnv("BANKGATE_CALLBACK_URL", ""),
		},

		Mail: notify.MailConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "orders@floralgifts.co.ke"),
		},

		KafkaBrokers: splitNonEmpty(getEnv("KAFKA_BROKERS", "")),

		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		InitiatesPerMinute: getEnvInt("INITIATES_PER_MINUTE", 5),
		RateLimitBackend:   getEnv("RATE_LIMIT_BACKEND", "redis"),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		SweepCutoff:   getEnvDuration("SWEEP_CUTOFF", 24*time.Hour),
	}
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Order store
	orderRepo, err := repository.NewRepository(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(&cfg.Postgres); err != nil {
		log.Fatalf("Failed to run order migrations: %v", err)
	}
	log.Printf("Connected to postgres at %s:%d", cfg.Postgres.Host, cfg.Postgres.Port)

	// Catalog store
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrationsDir); err != nil {
		log.Fatalf("Failed to run catalog migrations: %v", err)
	}

	// Cart store + cache
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Client().Disconnect(ctx)
	cartRepo := cart.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}

	cartCache := cart.NewRedisCache(redisClient)
	cartSvc := cart.NewService(cartRepo, cartCache)
	checkoutSvc := checkout.NewService(orderRepo, cartSvc)

	// Payment providers
	daraja := payment.NewDarajaClient(cfg.Daraja, nil)
	bankGate := payment.NewBankGateClient(cfg.BankGate, nil)
	initiator := payment.NewInitiator(orderRepo, daraja, bankGate)

	// Reconciliation pipeline
	notifier := notify.NewMailNotifier(cfg.Mail)
	var publisher reconcile.PaidEventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewPublisher(cfg.KafkaBrokers...)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Printf("Paid-order events enabled, brokers %v", cfg.KafkaBrokers)
	}
	reconciler := reconcile.NewReconciler(orderRepo, reconcile.NewCorrelator(), notifier, publisher)

	// Rate limiting for payment initiation. The redis window is shared
	// across instances; the local token bucket serves single-instance
	// deployments without touching redis on every request.
	var limiter ratelimit.Limiter
	if cfg.RateLimitBackend == "local" {
		limiter = ratelimit.NewLocalLimiter(cfg.InitiatesPerMinute, cfg.InitiatesPerMinute)
	} else {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.InitiatesPerMinute, time.Minute)
	}

	// Handlers
	cartHandler := h.NewCartHandler(cartSvc, cfg.RequestTimeout)
	orderHandler := h.NewOrderHandler(checkoutSvc, orderRepo, cfg.RequestTimeout)
	paymentHandler := h.NewPaymentHandler(initiator, cfg.RequestTimeout)
	webhookHandler := h.NewWebhookHandler(reconciler, cfg.RequestTimeout)
	catalogHandler := h.NewCatalogHandler(catalogRepo, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{product_id}", catalogHandler.GetProduct)
		r.Get("/blog", catalogHandler.ListPosts)
		r.Get("/blog/{slug}", catalogHandler.GetPost)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.Post("/orders", orderHandler.CreateOrder)
		r.Get("/orders/{order_id}", orderHandler.GetOrder)

		r.With(h.RateLimitMiddleware(limiter)).
			Post("/payments/initiate", paymentHandler.InitiatePayment)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Get("/orders", orderHandler.ListOrders)
			r.Post("/products", catalogHandler.CreateProduct)
			r.Put("/products/{product_id}", catalogHandler.UpdateProduct)
			r.Delete("/products/{product_id}", catalogHandler.DeleteProduct)
			r.Post("/blog", catalogHandler.CreatePost)
			r.Put("/blog/{post_id}", catalogHandler.UpdatePost)
			r.Delete("/blog/{post_id}", catalogHandler.DeletePost)
		})
	})

	// Provider callbacks live outside /api/v1: their URLs are registered
	// with the providers and must stay stable.
	r.Post("/webhooks/{provider}", webhookHandler.HandleCallback)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		log.Printf("Floralgifts server starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.SweepInterval > 0 && cfg.SweepCutoff > 0 {
		sweeper := sweep.NewSweeper(orderRepo, cfg.SweepInterval, cfg.SweepCutoff)
		g.Go(func() error {
			sweeper.Run(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
