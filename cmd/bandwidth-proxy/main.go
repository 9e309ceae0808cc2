package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bandwidth-proxy/internal/fetch"
	"bandwidth-proxy/internal/handlers"
	"bandwidth-proxy/internal/logging"
	"bandwidth-proxy/internal/media"
	"bandwidth-proxy/internal/memory"
	"bandwidth-proxy/internal/metrics"
	"bandwidth-proxy/internal/middleware"
	"bandwidth-proxy/internal/pipeline"
	"bandwidth-proxy/internal/policy"
	"bandwidth-proxy/internal/startup"
	"bandwidth-proxy/internal/transcoder"
	"bandwidth-proxy/internal/workers"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectInterval   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	startTime := time.Now()

	logger := logging.NewFromEnv()
	logging.SetDefault(logger)

	// GOMEMLIMIT must be in place before the codec pools allocate
	memResult := memory.ConfigureFromEnv(logger)

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	a := newApp(config, logger)

	router := setupRouter(a.handlers)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildMiddleware(router, config, logger),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       15 * time.Second,
		// per-chunk write deadlines are set by the streaming package
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, a)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// app holds the long-lived components shared by every request.
type app struct {
	permits   *fetch.PermitPool
	codecPool *workers.Pool
	monitor   *memory.Monitor
	collector *metrics.Collector
	handlers  *handlers.Handlers
	logger    *logging.Logger
}

func newApp(config *startup.Config, logger *logging.Logger) *app {
	vipsReady := true
	if err := media.InitVips(logger); err != nil {
		logger.Warn("libvips unavailable, AVIF output disabled: %v", err)
		vipsReady = false
	}
	avif := media.NewAVIFEncoder(vipsReady)
	if vipsReady && avif.Format() != media.FormatAVIF {
		logger.Warn("libvips has no working AVIF saver, serving JPEG instead")
	}
	jpeg := media.NewJPEGEncoder()

	startup.LogCodecInit(startup.CodecInfo{
		VipsReady: vipsReady,
		AVIF:      avif.Format() == media.FormatAVIF,
		Workers:   config.CodecWorkers,
		MaxWidth:  config.MaxWidth,
	})

	a := &app{
		permits:   fetch.NewPermitPool(config.FetchConcurrency),
		codecPool: workers.NewPool(config.CodecWorkers),
		monitor:   memory.NewMonitor(memory.DefaultConfig(), logger),
		logger:    logger,
	}
	a.monitor.Start()

	fetcher := fetch.New(fetch.NewHTTPClient(), a.permits, config.FetchConfig(), metrics.NewFetchObserver(), logger)
	tc := transcoder.New(avif, jpeg, a.codecPool, a.monitor, config.TranscodeLimits(), logger)
	pl := pipeline.New(fetcher, policy.New(config.PolicyConfig()), tc, logger)

	a.handlers = handlers.New(pl, a.permits, handlers.Options{
		Stream:      config.StreamConfig(),
		AVIFEnabled: avif.Format() == media.FormatAVIF,
		Memory:      a.monitor,
	}, logger)

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	a.collector = metrics.NewCollector(metrics.StatsFunc(a.stats), collectInterval, logger)
	a.collector.Start()

	return a
}

func (a *app) stats() metrics.Stats {
	alloc, _, _ := a.monitor.GetStats()
	return metrics.Stats{
		PermitsInUse:    a.permits.InUse(),
		PermitsWaiting:  a.permits.Waiting(),
		PermitsCapacity: a.permits.Capacity(),
		CodecWorkers:    a.codecPool.Size(),
		CodecBusy:       a.codecPool.Busy(),
		CodecWaiting:    a.codecPool.Waiting(),
		MemoryAlloc:     alloc,
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health checks
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health/", h.Health).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	// Proxy
	r.HandleFunc("/api/index", h.Compress).Methods(http.MethodGet, http.MethodHead).Name("compress")
	r.HandleFunc("/api/index/", h.Compress).Methods(http.MethodGet, http.MethodHead)

	return r
}

// buildMiddleware wraps the router, outermost first: request ID, CORS,
// access log, metrics, compression.
func buildMiddleware(router http.Handler, config *startup.Config, logger *logging.Logger) http.Handler {
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig, logger)(handler)

	handler = middleware.CORS(handler)
	return middleware.RequestID(handler)
}

func newMetricsServer(port string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", handlers.MetricsHandler())
	return &http.Server{
		Addr:              ":" + port,
		Handler:           m,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, a *app) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.shutdown(ctx, srv, metricsSrv)
	startup.LogShutdownComplete()
}

// shutdown drains in dependency order: refuse new upstream work first so
// readiness flips and waiters fail fast, then let in-flight requests finish,
// then stop the codec pool and libvips.
func (a *app) shutdown(ctx context.Context, srv, metricsSrv *http.Server) {
	startup.LogShutdownStep("Closing fetch permit pool")
	a.permits.Close()
	startup.LogShutdownStepComplete("Fetch permit pool closed")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	if a.collector != nil {
		a.collector.Stop()
	}

	startup.LogShutdownStep("Stopping codec workers")
	a.codecPool.Close()
	a.monitor.Stop()
	startup.LogShutdownStepComplete("Codec workers stopped")

	media.ShutdownVips(a.logger)
}
