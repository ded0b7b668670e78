package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	alertapp "quake-pager/internal/alerting/application"
	alertrepo "quake-pager/internal/alerting/infrastructure/postgres"
	alertinterfaces "quake-pager/internal/alerting/interfaces"
	alerthttp "quake-pager/internal/alerting/interfaces/http"
	alertnotify "quake-pager/internal/alerting/notify"
	"quake-pager/internal/audit"
	"quake-pager/internal/auth"
	"quake-pager/internal/catalog"
	"quake-pager/internal/config"
	"quake-pager/internal/eventing"
	eventingrepo "quake-pager/internal/eventing/infrastructure/postgres"
	"quake-pager/internal/exposure"
	"quake-pager/internal/lossmodels"
	"quake-pager/internal/observability/metrics"
	pagerapp "quake-pager/internal/pager/application"
	"quake-pager/internal/pager/application/events"
	pagerrepo "quake-pager/internal/pager/infrastructure/postgres"
	pagerhttp "quake-pager/internal/pager/interfaces/http"
	"quake-pager/internal/pipeline"
	"quake-pager/internal/shaking"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	baseBus := eventing.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.VersionPublished{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, baseBus)

	versionStore := pagerrepo.NewEventRepository(db)
	publishService, err := pagerapp.NewPublishService(versionStore, publisher, auditRepo, logger)
	if err != nil {
		logger.Fatalf("publish service error: %v", err)
	}

	selector := catalog.NewSelector()
	if err := selector.Verify(cfg.Catalog); err != nil {
		logger.Fatalf("catalog error: %v", err)
	}

	fatalityModel, err := lossmodels.NewEmpiricalFatalityModel(rateTable(cfg.Models.Fatality), cfg.Models.Fatality.G)
	if err != nil {
		logger.Fatalf("fatality model error: %v", err)
	}
	economicModel, err := lossmodels.NewEmpiricalEconomicModel(rateTable(cfg.Models.Economic), cfg.Models.Economic.G)
	if err != nil {
		logger.Fatalf("economic model error: %v", err)
	}
	models := []lossmodels.Model{fatalityModel, economicModel}
	if cfg.Models.SemiEmpirical.Enabled {
		semiModel, err := lossmodels.NewSemiEmpiricalModel(lossmodels.SemiEmpiricalParams{
			UrbanRates:       cfg.Models.SemiEmpirical.UrbanRates,
			RuralRates:       cfg.Models.SemiEmpirical.RuralRates,
			ResidentialShare: cfg.Models.SemiEmpirical.ResidentialShare,
			G:                cfg.Models.SemiEmpirical.G,
		})
		if err != nil {
			logger.Fatalf("semi-empirical model error: %v", err)
		}
		models = append(models, semiModel)
	}
	modelRunner, err := lossmodels.NewRunner(models...)
	if err != nil {
		logger.Fatalf("model runner error: %v", err)
	}

	exposureEngine := exposure.NewEngine(exposure.WithCountryNames(cfg.CountryNames))
	aggregator := pagerapp.NewAggregator()

	pipelineOpts := []pipeline.Option{
		pipeline.WithEconomicWeights(cfg.Economic.Weights, cfg.Economic.FallbackWeight),
	}
	if cfg.HistoricalPath != "" {
		historical, err := catalog.LoadHistoricalCatalog(cfg.HistoricalPath)
		if err != nil {
			logger.Fatalf("historical catalog error: %v", err)
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithHistoricalCatalog(historical))
	}
	if cfg.CityPath != "" {
		cities, err := catalog.LoadCityCatalog(cfg.CityPath)
		if err != nil {
			logger.Fatalf("city catalog error: %v", err)
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithCityCatalog(cities))
	}
	pipelineRunner, err := pipeline.NewRunner(
		cfg.Catalog,
		selector,
		shaking.NewFileLoader(),
		exposureEngine,
		modelRunner,
		aggregator,
		publishService,
		logger,
		pipelineOpts...,
	)
	if err != nil {
		logger.Fatalf("pipeline error: %v", err)
	}

	subscriberRepo := alertrepo.NewSubscriberRepository(db)
	alertEngine, err := alertapp.NewEngine(cfg.Alerting.StaleCutoff(), logger)
	if err != nil {
		logger.Fatalf("alert engine error: %v", err)
	}
	template, err := alertnotify.NewTemplate(alertnotify.LongTemplate, alertnotify.ShortTemplate)
	if err != nil {
		logger.Fatalf("alert template error: %v", err)
	}
	notifyOpts := []alertnotify.Option{
		alertnotify.WithCooldown(cfg.Alerting.Cooldown()),
		alertnotify.WithDedupeWindow(cfg.Alerting.Dedupe()),
	}
	var dispatchers []alertnotify.Dispatcher
	if cfg.Alerting.WebhookURL != "" {
		channel, err := alertnotify.NewWebhookChannel(cfg.Alerting.WebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		notifier, err := alertnotify.NewNotifier(channel, template, logger, notifyOpts...)
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		dispatchers = append(dispatchers, notifier)
	}
	if len(cfg.Alerting.KafkaBrokers) > 0 {
		writer := alertnotify.NewKafkaWriter(cfg.Alerting.KafkaBrokers, cfg.Alerting.KafkaTopic)
		defer writer.Close()
		channel, err := alertnotify.NewKafkaChannel(writer)
		if err != nil {
			logger.Fatalf("alert kafka error: %v", err)
		}
		notifier, err := alertnotify.NewNotifier(channel, template, logger, notifyOpts...)
		if err != nil {
			logger.Fatalf("alert kafka notifier error: %v", err)
		}
		dispatchers = append(dispatchers, notifier)
	}
	consumer, err := alertinterfaces.NewVersionPublishedConsumer(
		publishService,
		subscriberRepo,
		alertEngine,
		alertnotify.NewMultiNotifier(dispatchers...),
		nil,
		logger,
	)
	if err != nil {
		logger.Fatalf("alert consumer error: %v", err)
	}
	consumer.Register(baseBus, processedStore)

	versionsHandler, err := pagerhttp.NewVersionsHandler(publishService)
	if err != nil {
		logger.Fatalf("versions handler error: %v", err)
	}
	runsHandler, err := pagerhttp.NewRunsHandler(pipelineRunner, auditRepo)
	if err != nil {
		logger.Fatalf("runs handler error: %v", err)
	}
	subscribersHandler, err := alerthttp.NewSubscribersHandler(subscriberRepo, auditRepo)
	if err != nil {
		logger.Fatalf("subscribers handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/runs", runsHandler)
	mux.Handle("/api/v1/events/", versionsHandler)
	mux.Handle("/api/v1/subscribers", subscribersHandler)
	mux.Handle("/api/v1/subscribers/", subscribersHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func rateTable(rates config.RatesConfig) lossmodels.RateTable {
	return lossmodels.RateTable{
		ByCountry: rates.ByCountry,
		Default:   rates.Default,
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
