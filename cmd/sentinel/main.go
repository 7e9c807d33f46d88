package main

import (
	"context"
	"strings"
	"time"

	"github.com/gamepop/fin-x-watcher/internal/analysis"
	"github.com/gamepop/fin-x-watcher/internal/classifier"
	"github.com/gamepop/fin-x-watcher/internal/handlers"
	"github.com/gamepop/fin-x-watcher/internal/metrics"
	"github.com/gamepop/fin-x-watcher/internal/monitor"
	"github.com/gamepop/fin-x-watcher/internal/websocket"
	"github.com/gamepop/fin-x-watcher/pkg/clients/xapi"
	"github.com/gamepop/fin-x-watcher/pkg/config"
	"github.com/gamepop/fin-x-watcher/pkg/entities"
	"github.com/gamepop/fin-x-watcher/pkg/llm"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
	"github.com/gamepop/fin-x-watcher/pkg/models"
	"github.com/gamepop/fin-x-watcher/pkg/monitoring"
	"github.com/gamepop/fin-x-watcher/pkg/notify"
	"github.com/gamepop/fin-x-watcher/pkg/server"
	"github.com/gamepop/fin-x-watcher/pkg/version"
)

// streamSource adapts the X API client to the monitor's stream interface.
type streamSource struct {
	client *xapi.Client
}

func (s streamSource) ReplaceStreamRules(ctx context.Context, rules []entities.StreamRule) error {
	return s.client.ReplaceStreamRules(ctx, rules)
}

func (s streamSource) OpenStream(ctx context.Context) (monitor.StreamConn, error) {
	reader, err := s.client.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("sentinel")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Sentinel (Financial Risk Watcher)")

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("sentinel", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("sentinel", version.Version, version.GitCommit)
	serviceMetrics := metrics.New(metricsCollector)

	// Upstream X API client
	xClient := xapi.NewClient(xapi.LoadConfig(logger))

	// Classifier chain: fetched-posts classification with live-search fallback
	llmProvider := llm.NewOpenAIProvider(llm.LoadConfig())
	primary := classifier.NewLLMClassifier(llmProvider, logger)
	liveSearch := classifier.NewLiveSearchClassifier(llmProvider, logger)
	chain := classifier.NewChain(primary, liveSearch)

	// Slack notifier (optional; missing credentials mean skipped deliveries)
	slackCfg := notify.LoadSlackConfig(logger)
	notifier := notify.NewSlackNotifier(slackCfg)

	// Analysis pipeline
	pipeline := analysis.NewPipeline(xClient, chain, liveSearch, notifier, logger)

	// Live stream monitor
	liveMonitor := monitor.New(monitor.Config{
		Source:     streamSource{client: xClient},
		Classifier: primary,
		Notifier:   notifier,
		Logger:     logger,
	})

	// WebSocket hub, fed by the monitor's event feed
	hub := websocket.NewHub(logger)
	go hub.Run()

	events, unsubscribe := liveMonitor.Subscribe()
	defer unsubscribe()
	go func() {
		for ev := range events {
			serviceMetrics.StreamEvents.WithLabelValues(string(ev.Type)).Inc()
			if ev.Type == models.EventReconnecting {
				serviceMetrics.StreamReconnects.WithLabelValues().Inc()
			}
			serviceMetrics.BufferedPosts.WithLabelValues().Set(float64(liveMonitor.Status().BufferedPosts))
			hub.BroadcastEvent(ev)
		}
	}()

	// Health checks
	healthChecker.AddCheck("x_api_breaker", monitoring.BreakerHealthCheck("x-api", xClient.BreakerState))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"X_BEARER_TOKEN": config.GetEnv("X_BEARER_TOKEN", ""),
		"LLM_API_KEY":    config.GetEnv("LLM_API_KEY", config.GetEnv("XAI_API_KEY", "")),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional continuous polling of the configured institutions
	if targets := config.GetEnv("TARGET_ENTITIES", ""); targets != "" {
		names := splitTargets(targets)
		runnerCfg := analysis.RunnerConfig{
			Interval:    time.Duration(config.GetEnvInt("MONITORING_INTERVAL_SECONDS", 600)) * time.Second,
			EntityPause: 3 * time.Second,
		}
		runner := analysis.NewRunner(pipeline, names, runnerCfg, logger)

		if config.GetEnvBool("RUN_ONCE", false) {
			reports, err := runner.RunOnce(ctx)
			if err != nil {
				logger.WithError(err).Fatal("Monitoring run failed")
			}
			logger.WithField("reports", len(reports)).Info("Single monitoring run completed")
			return
		}

		go func() {
			if err := runner.Run(ctx); err != nil {
				logger.WithError(err).Error("Continuous monitoring stopped")
			}
		}()
	}

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "sentinel", healthChecker, metricsCollector)

	// Control surface routes
	h := handlers.New(handlers.Config{
		Pipeline: pipeline,
		Monitor:  liveMonitor,
		Hub:      hub,
		Metrics:  serviceMetrics,
		Breaker:  xClient.BreakerStats,
		Logger:   logger,
	})
	h.RegisterRoutes(router)

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("sentinel", "18080")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}

// splitTargets parses the comma-separated TARGET_ENTITIES value.
func splitTargets(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
