// Package startup handles configuration loading, build information and the
// startup/shutdown log sections.
//
// # Configuration
//
// [LoadConfig] starts from [DefaultConfig], overlays the YAML file named by
// CONFIG_FILE when set, then applies environment variables:
//
//   - PORT: proxy listen port (default: 3000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: enable or disable the metrics server (default: true)
//   - LOG_HEALTH_CHECKS: log health check requests (default: true)
//   - BYPASS_THRESHOLD: bytes below which images are passed through (default: 10240)
//   - FETCH_HEADERS: comma-separated inbound headers forwarded upstream
//   - FETCH_CONCURRENCY: concurrent upstream fetches (default: 10)
//   - FETCH_TIMEOUT: per-attempt upstream timeout as Go duration (default: 8s)
//   - FETCH_MAX_ATTEMPTS: attempts on transport failure (default: 2)
//   - FETCH_THROTTLE: delay before the first attempt (default: 400ms)
//   - MAX_WIDTH: output width cap in pixels (default: 400)
//   - CODEC_WORKERS: decode/encode pool size (default: GOMAXPROCS)
//   - WRITE_TIMEOUT: per-chunk client write deadline (default: 15s)
//
// LOG_LEVEL, DEBUG and LOG_ENABLED are read by the logging package;
// MEMORY_LIMIT, MEMORY_RATIO and GOMEMLIMIT by the memory package.
//
// A config file uses the same settings in camelCase, durations as strings:
//
//	port: "8080"
//	fetchTimeout: 5s
//	fetchHeaders: [user-agent, referer]
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
package startup
