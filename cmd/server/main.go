package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/securebank/backend/internal/config"
	"github.com/securebank/backend/internal/database"
	"github.com/securebank/backend/internal/handlers"
	mW "github.com/securebank/backend/internal/middleware"
	"github.com/securebank/backend/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("bank.currency", "BANK_CURRENCY")
	viper.BindEnv("bank.fund_new_accounts", "BANK_FUND_NEW_ACCOUNTS")
	viper.BindEnv("bank.initial_funding_amount", "BANK_INITIAL_FUNDING_AMOUNT")
	viper.BindEnv("bank.payroll_interval", "BANK_PAYROLL_INTERVAL")
	viper.BindEnv("bank.payment_link_base_url", "BANK_PAYMENT_LINK_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		logrus.WithError(err).Info("config file not found, using defaults")
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})

	bankCfg := config.LoadBankConfig()

	db := database.InitDatabase()
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("database migration failed")
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Wire services
	ibanService := services.NewIbanService()
	ledgerService := services.NewLedgerService(db)
	accountService := services.NewAccountService(db, ibanService, bankCfg.Currency)
	transactionService := services.NewTransactionService(db)
	treasuryService := services.NewTreasuryService(db, ledgerService)
	paymentLinkService := services.NewPaymentLinkService(db, ledgerService, bankCfg.PaymentLinkBaseURL)
	payrollService := services.NewPayrollService(db, ledgerService, bankCfg.Currency, bankCfg.PayrollInterval)

	funding := services.FundingPolicy{Enabled: bankCfg.FundNewAccounts}
	if amount, err := decimal.NewFromString(bankCfg.InitialFundingAmount); err == nil {
		funding.Amount = amount
	} else {
		logrus.WithError(err).Warn("invalid initial funding amount, welcome funding disabled")
		funding.Enabled = false
	}

	transferHandler := handlers.NewTransferHandler(ledgerService, accountService)
	accountHandler := handlers.NewAccountHandler(accountService, transactionService, treasuryService, funding)
	paymentLinkHandler := handlers.NewPaymentLinkHandler(paymentLinkService, accountService)
	treasuryHandler := handlers.NewTreasuryHandler(treasuryService)
	payrollHandler := handlers.NewPayrollHandler(payrollService)

	// Background payroll scheduler
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go payrollService.Run(schedulerCtx)

	// Setup router
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(redisClient))

			r.Post("/transfers", transferHandler.Transfer)
			r.Post("/deposits", transferHandler.Deposit)
			r.Post("/withdrawals", transferHandler.Withdraw)

			r.Post("/accounts", accountHandler.CreateAccount)
			r.Get("/accounts", accountHandler.ListAccounts)
			r.Get("/accounts/{accountID}", accountHandler.GetAccount)
			r.Delete("/accounts/{accountID}", accountHandler.CloseAccount)
			r.Get("/accounts/{accountID}/transactions", accountHandler.ListTransactions)

			r.Post("/payment-links", paymentLinkHandler.Create)
			r.Get("/payment-links", paymentLinkHandler.List)
			r.Get("/payment-links/{linkID}", paymentLinkHandler.Get)
			r.Put("/payment-links/{linkID}", paymentLinkHandler.Update)
			r.Delete("/payment-links/{linkID}", paymentLinkHandler.Delete)
			r.Post("/payment-links/{linkID}/pay", paymentLinkHandler.Pay)
			r.Get("/payment-links/{linkID}/qr", paymentLinkHandler.QRCode)

			r.Get("/treasury", treasuryHandler.Balance)
			r.Post("/treasury/fund", treasuryHandler.FundAccount)

			r.Post("/payroll/profiles", payrollHandler.Assign)
			r.Get("/payroll/profiles", payrollHandler.List)
			r.Post("/payroll/run", payrollHandler.RunOnce)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logrus.WithField("port", port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("server shutting down")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("server forced to shutdown")
	}

	logrus.Info("server stopped")
}
