package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/thriftique/service-account-go/internal/account"
	"github.com/thriftique/service-account-go/internal/account/repo"
	"github.com/thriftique/service-account-go/internal/email"
	"github.com/thriftique/service-account-go/internal/router"
	"github.com/thriftique/service-account-go/internal/token"
	"github.com/thriftique/service-account-go/pkg/database"
	"github.com/thriftique/service-account-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-account-go")

	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		sugar.Fatal("TOKEN_SECRET is required")
	}
	issuerName := os.Getenv("TOKEN_ISSUER")
	if issuerName == "" {
		issuerName = "thriftique"
	}
	issuer := token.NewIssuer([]byte(secret), issuerName)

	// credential store: postgres by default, in-memory for local hacking
	var store account.Store
	if os.Getenv("DATABASE_URL") == "memory" {
		sugar.Warn("using in-memory credential store; accounts will not survive restarts")
		store = account.NewMemoryStore()
	} else {
		cfg := database.ConfigFromEnv()
		sqlDB, err := database.Connect(cfg)
		if err != nil {
			sugar.Fatalf("db connect: %v", err)
		}
		defer sqlDB.Close()

		sqlxDB := sqlx.NewDb(sqlDB, "postgres")
		accountRepo := repo.NewAccountRepo(sqlxDB)
		if err := accountRepo.EnsureTable(context.Background()); err != nil {
			sugar.Fatalf("ensure accounts table: %v", err)
		}
		store = accountRepo
	}

	hasher := account.BcryptHasher{Cost: intEnv("BCRYPT_COST", 12)}

	var notifier email.Notifier
	if host := os.Getenv("SMTP_HOST"); host != "" {
		notifier = email.NewSender(
			host,
			intEnv("SMTP_PORT", 587),
			os.Getenv("SMTP_USERNAME"),
			os.Getenv("SMTP_PASSWORD"),
			os.Getenv("SMTP_FROM"),
		)
	} else {
		notifier = email.LogNotifier{Logger: sugar}
	}

	locks := account.NewLocks()
	svc := account.NewService(store, hasher, issuer, notifier, locks, sugar)
	adminSvc := account.NewAdminService(store, hasher, locks, sugar)

	handler := router.RegisterRoutes(
		sugar,
		account.NewHandler(svc, sugar),
		account.NewAdminHandler(adminSvc, sugar),
		issuer,
	)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infow("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
