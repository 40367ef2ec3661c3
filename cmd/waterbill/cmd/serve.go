package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apihttp "waterbill/internal/api/http"
	"waterbill/internal/audit"
	"waterbill/internal/auth"
	billingmasterdata "waterbill/internal/billing/adapters/masterdata"
	billapp "waterbill/internal/billing/application"
	billpg "waterbill/internal/billing/infrastructure/postgres"
	billhttp "waterbill/internal/billing/interfaces/http"
	"waterbill/internal/config"
	"waterbill/internal/eventing"
	masterapp "waterbill/internal/masterdata/application"
	masterpg "waterbill/internal/masterdata/infrastructure/postgres"
	masterhttp "waterbill/internal/masterdata/interfaces/http"
	meterapp "waterbill/internal/metering/application"
	meterpg "waterbill/internal/metering/infrastructure/postgres"
	meterhttp "waterbill/internal/metering/interfaces/http"
	"waterbill/internal/notify"
	"waterbill/internal/observability/logging"
	"waterbill/internal/observability/metrics"
	payapp "waterbill/internal/payments/application"
	paypg "waterbill/internal/payments/infrastructure/postgres"
	payhttp "waterbill/internal/payments/interfaces/http"
	rateapp "waterbill/internal/rating/application"
	ratepg "waterbill/internal/rating/infrastructure/postgres"
	ratehttp "waterbill/internal/rating/interfaces/http"
	"waterbill/internal/reports"
	"waterbill/internal/storage/postgres"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if serveMigrate {
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", zap.Strings("names", applied))
	}

	metrics.Init(db, logger)
	app, err := buildApp(cfg, db, logger)
	if err != nil {
		return err
	}

	go app.bills.RunOverdueSweep(ctx, cfg.OverdueSweepInterval)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type app struct {
	handler http.Handler
	bills   *billapp.BillService
}

func buildApp(cfg config.Config, db *sql.DB, logger *zap.Logger) (*app, error) {
	auditRepo := audit.NewRepository(db)
	bus := eventing.NewInMemoryBus()

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier.Register(bus)

	rateService, err := rateapp.NewRateService(
		ratepg.NewRateRepository(db),
		rateapp.WithCacheTTL(cfg.RateCacheTTL),
		rateapp.WithLogger(logger.Named("rating")),
	)
	if err != nil {
		return nil, fmt.Errorf("rate service: %w", err)
	}
	rateHandler, err := ratehttp.NewHandler(rateService, auditRepo, logger, cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("rate handler: %w", err)
	}

	customerRepo := masterpg.NewCustomerRepository(db)
	meterRepo := masterpg.NewMeterRepository(db)
	customerService, err := masterapp.NewCustomerService(customerRepo, meterRepo, masterpg.NewLookupRepository(db), logger.Named("customers"))
	if err != nil {
		return nil, fmt.Errorf("customer service: %w", err)
	}
	customerHandler, err := masterhttp.NewHandler(customerService, auditRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("customer handler: %w", err)
	}

	readingService, err := meterapp.NewReadingService(meterpg.NewReadingRepository(db), meterRepo, logger.Named("metering"))
	if err != nil {
		return nil, fmt.Errorf("reading service: %w", err)
	}
	readingHandler, err := meterhttp.NewHandler(readingService, auditRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("reading handler: %w", err)
	}
	ingestHandler, err := meterhttp.NewIngestHandler(readingService, logger)
	if err != nil {
		return nil, fmt.Errorf("ingest handler: %w", err)
	}

	customerSource, err := billingmasterdata.NewCustomerSource(customerRepo)
	if err != nil {
		return nil, err
	}
	billService, err := billapp.NewBillService(
		billpg.NewBillRepository(db),
		customerSource,
		readingService,
		rateService,
		billapp.WithWorkers(cfg.BillWorkers),
		billapp.WithDueDays(cfg.BillDueDays),
		billapp.WithCurrency(cfg.Currency),
		billapp.WithPublisher(bus),
		billapp.WithLogger(logger.Named("billing")),
	)
	if err != nil {
		return nil, fmt.Errorf("bill service: %w", err)
	}
	billHandler, err := billhttp.NewHandler(billService, auditRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("bill handler: %w", err)
	}

	paymentService, err := payapp.NewPaymentService(paypg.NewPaymentRepository(db), bus, logger.Named("payments"))
	if err != nil {
		return nil, fmt.Errorf("payment service: %w", err)
	}
	paymentHandler, err := payhttp.NewHandler(paymentService, auditRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("payment handler: %w", err)
	}

	reportService, err := reports.NewService(reports.NewPostgresStore(db), cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("report service: %w", err)
	}

	loginService, err := auth.NewLoginService(auth.NewAdminRepository(db), []byte(cfg.JWTSecret), cfg.TokenTTL, auth.WithLoginLogger(logger.Named("auth")))
	if err != nil {
		return nil, fmt.Errorf("login service: %w", err)
	}
	loginHandler, err := auth.NewLoginHandler(loginService)
	if err != nil {
		return nil, fmt.Errorf("login handler: %w", err)
	}

	policy := auth.NewDefaultPolicy(auth.DefaultExemptPaths, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), cfg.IngestMaxSkew)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/auth/login", loginHandler)
	mux.Handle("/api/v1/rates", rateHandler)
	mux.Handle("/api/v1/rates/", rateHandler)
	mux.Handle("/api/v1/customers", customerHandler)
	mux.Handle("/api/v1/customers/", customerHandler)
	mux.Handle("/api/v1/account-types", customerHandler)
	mux.Handle("/api/v1/account-statuses", customerHandler)
	mux.Handle(meterhttp.IngestPath, ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/readings", readingHandler)
	mux.Handle("/api/v1/bills", billHandler)
	mux.Handle("/api/v1/bills/", billHandler)
	mux.Handle("/api/v1/payments", paymentHandler)
	mux.Handle("/api/v1/payments/", paymentHandler)
	mux.Handle("/api/v1/payment-methods", paymentHandler)
	mux.Handle("/api/v1/reports/dashboard", apihttp.NewDashboardHandler(reportService, logger))
	mux.Handle("/api/v1/reports/usage", apihttp.NewUsageChartHandler(reportService, logger))
	mux.Handle("/api/v1/exports/bills.csv", apihttp.NewExportBillsCSVHandler(reportService, logger))
	mux.Handle("/api/v1/exports/bills.xlsx", apihttp.NewExportBillsXLSXHandler(reportService, logger))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &app{
		handler: logging.Middleware(authMiddleware.Wrap(mux), logger.Named("http")),
		bills:   billService,
	}, nil
}

func buildNotifier(cfg config.Config, logger *zap.Logger) (*notify.Notifier, error) {
	var channel notify.Channel = notify.NewLogChannel(logger.Named("notify"))
	if cfg.Notify.WebhookURL != "" {
		webhook, err := notify.NewWebhookChannel(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
		if err != nil {
			return nil, fmt.Errorf("notify webhook: %w", err)
		}
		channel = notify.NewMultiChannel(channel, webhook)
	}
	tpl, err := notify.NewTemplate(cfg.Notify.Template)
	if err != nil {
		return nil, fmt.Errorf("notify template: %w", err)
	}
	return notify.NewNotifier(channel, tpl, notify.WithLogger(logger.Named("notify")), notify.WithDedupeWindow(time.Minute))
}
