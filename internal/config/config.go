package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/draftwire/internal/platform/logging"
)

// Config stores runtime configuration for the engine.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LogLevel       logging.Level
	LogFormat      string

	CORSAllowedOrigins []string
	OpsToken           string

	DBURL                   string
	DBDisablePreparedBinary bool

	CacheTTL time.Duration

	FeedURL                   string
	FeedSessionURL            string
	FeedToken                 string
	FeedOrigin                string
	FeedDialTimeout           time.Duration
	FeedWriteTimeout          time.Duration
	FeedSessionTimeout        time.Duration
	FeedCircuitEnabled        bool
	FeedCircuitFailureCount   int
	FeedCircuitOpenTimeout    time.Duration
	FeedCircuitHalfOpenMaxReq int

	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
	ReconnectMaxAttempts int
	ReconnectBackoff     []time.Duration
	FrameBuffer          int

	SnapshotCapacity int
	// ValidationCheckEvery runs the consistency validator after every
	// N applied picks; 0 disables the automatic sweep.
	ValidationCheckEvery int

	ResolverWorkers       int
	ResolverDrainInterval time.Duration

	JournalBuffer         int
	JournalBatchSize      int
	JournalFlushInterval  time.Duration
	JournalFlushTimeout   time.Duration
	JournalMemoryCapacity int

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled bool
	UptraceDSN     string

	BetterStackEnabled  bool
	BetterStackEndpoint string
	BetterStackToken    string
	BetterStackTimeout  time.Duration
	BetterStackMinLevel logging.Level

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	logLevel, err := logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_LOG_LEVEL: %w", err)
	}

	logFormatDefault := LogFormatJSON
	if appEnv == EnvDev {
		logFormatDefault = LogFormatConsole
	}
	logFormat, err := parseLogFormat(getEnv("APP_LOG_FORMAT", logFormatDefault))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "10m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_TTL: %w", err)
	}
	if cacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be > 0")
	}

	feedDialTimeout, err := time.ParseDuration(getEnv("FEED_DIAL_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_DIAL_TIMEOUT: %w", err)
	}
	if feedDialTimeout <= 0 {
		return Config{}, fmt.Errorf("FEED_DIAL_TIMEOUT must be > 0")
	}
	feedWriteTimeout, err := time.ParseDuration(getEnv("FEED_WRITE_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_WRITE_TIMEOUT: %w", err)
	}
	if feedWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("FEED_WRITE_TIMEOUT must be > 0")
	}
	feedSessionTimeout, err := time.ParseDuration(getEnv("FEED_SESSION_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_SESSION_TIMEOUT: %w", err)
	}
	if feedSessionTimeout <= 0 {
		return Config{}, fmt.Errorf("FEED_SESSION_TIMEOUT must be > 0")
	}
	feedCircuitEnabled, err := strconv.ParseBool(getEnv("FEED_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_CIRCUIT_ENABLED: %w", err)
	}
	feedCircuitFailureCount, err := getEnvAsInt("FEED_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if feedCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("FEED_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	feedCircuitOpenTimeout, err := time.ParseDuration(getEnv("FEED_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if feedCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("FEED_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	feedCircuitHalfOpenMaxReq, err := getEnvAsInt("FEED_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if feedCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("FEED_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	heartbeatInterval, err := time.ParseDuration(getEnv("HEARTBEAT_CHECK_INTERVAL", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HEARTBEAT_CHECK_INTERVAL: %w", err)
	}
	if heartbeatInterval <= 0 {
		return Config{}, fmt.Errorf("HEARTBEAT_CHECK_INTERVAL must be > 0")
	}
	heartbeatTimeout, err := time.ParseDuration(getEnv("HEARTBEAT_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HEARTBEAT_TIMEOUT: %w", err)
	}
	if heartbeatTimeout <= heartbeatInterval {
		return Config{}, fmt.Errorf("HEARTBEAT_TIMEOUT must be > HEARTBEAT_CHECK_INTERVAL")
	}

	reconnectMaxAttempts, err := getEnvAsInt("RECONNECT_MAX_ATTEMPTS", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse RECONNECT_MAX_ATTEMPTS: %w", err)
	}
	if reconnectMaxAttempts < 1 {
		return Config{}, fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be >= 1")
	}
	reconnectBackoff, err := parseDurationList(getEnv("RECONNECT_BACKOFF", "1s,2s,4s,8s,16s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RECONNECT_BACKOFF: %w", err)
	}
	if len(reconnectBackoff) == 0 {
		return Config{}, fmt.Errorf("RECONNECT_BACKOFF cannot be empty")
	}

	frameBuffer, err := getEnvAsInt("FEED_FRAME_BUFFER", 256)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_FRAME_BUFFER: %w", err)
	}
	if frameBuffer < 1 {
		return Config{}, fmt.Errorf("FEED_FRAME_BUFFER must be >= 1")
	}

	snapshotCapacity, err := getEnvAsInt("SNAPSHOT_CAPACITY", 100)
	if err != nil {
		return Config{}, fmt.Errorf("parse SNAPSHOT_CAPACITY: %w", err)
	}
	if snapshotCapacity < 1 {
		return Config{}, fmt.Errorf("SNAPSHOT_CAPACITY must be >= 1")
	}

	validationCheckEvery, err := getEnvAsInt("VALIDATION_CHECK_EVERY", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse VALIDATION_CHECK_EVERY: %w", err)
	}
	if validationCheckEvery < 0 {
		return Config{}, fmt.Errorf("VALIDATION_CHECK_EVERY must be >= 0")
	}

	resolverWorkers, err := getEnvAsInt("RESOLVER_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVER_WORKERS: %w", err)
	}
	if resolverWorkers < 1 {
		return Config{}, fmt.Errorf("RESOLVER_WORKERS must be >= 1")
	}
	resolverDrainInterval, err := time.ParseDuration(getEnv("RESOLVER_DRAIN_INTERVAL", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVER_DRAIN_INTERVAL: %w", err)
	}
	if resolverDrainInterval <= 0 {
		return Config{}, fmt.Errorf("RESOLVER_DRAIN_INTERVAL must be > 0")
	}

	journalBuffer, err := getEnvAsInt("JOURNAL_BUFFER", 1024)
	if err != nil {
		return Config{}, fmt.Errorf("parse JOURNAL_BUFFER: %w", err)
	}
	if journalBuffer < 1 {
		return Config{}, fmt.Errorf("JOURNAL_BUFFER must be >= 1")
	}
	journalBatchSize, err := getEnvAsInt("JOURNAL_BATCH_SIZE", 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse JOURNAL_BATCH_SIZE: %w", err)
	}
	if journalBatchSize < 1 {
		return Config{}, fmt.Errorf("JOURNAL_BATCH_SIZE must be >= 1")
	}
	journalFlushInterval, err := time.ParseDuration(getEnv("JOURNAL_FLUSH_INTERVAL", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse JOURNAL_FLUSH_INTERVAL: %w", err)
	}
	if journalFlushInterval <= 0 {
		return Config{}, fmt.Errorf("JOURNAL_FLUSH_INTERVAL must be > 0")
	}
	journalFlushTimeout, err := time.ParseDuration(getEnv("JOURNAL_FLUSH_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse JOURNAL_FLUSH_TIMEOUT: %w", err)
	}
	if journalFlushTimeout <= 0 {
		return Config{}, fmt.Errorf("JOURNAL_FLUSH_TIMEOUT must be > 0")
	}
	journalMemoryCapacity, err := getEnvAsInt("JOURNAL_MEMORY_CAPACITY", 10000)
	if err != nil {
		return Config{}, fmt.Errorf("parse JOURNAL_MEMORY_CAPACITY: %w", err)
	}
	if journalMemoryCapacity < 1 {
		return Config{}, fmt.Errorf("JOURNAL_MEMORY_CAPACITY must be >= 1")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	betterStackEnabled, err := strconv.ParseBool(getEnv("BETTERSTACK_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse BETTERSTACK_ENABLED: %w", err)
	}
	betterStackEndpoint := strings.TrimSpace(getEnv("BETTERSTACK_ENDPOINT", ""))
	if betterStackEnabled && betterStackEndpoint == "" {
		return Config{}, fmt.Errorf("BETTERSTACK_ENDPOINT is required when BETTERSTACK_ENABLED=true")
	}
	betterStackTimeout, err := time.ParseDuration(getEnv("BETTERSTACK_TIMEOUT", "3s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse BETTERSTACK_TIMEOUT: %w", err)
	}
	if betterStackTimeout <= 0 {
		return Config{}, fmt.Errorf("BETTERSTACK_TIMEOUT must be > 0")
	}
	betterStackMinLevel, err := logging.ParseLevel(getEnv("BETTERSTACK_MIN_LEVEL", "error"))
	if err != nil {
		return Config{}, fmt.Errorf("parse BETTERSTACK_MIN_LEVEL: %w", err)
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	cfg := Config{
		AppEnv:                     appEnv,
		ServiceName:                getEnv("APP_SERVICE_NAME", "draftwire"),
		ServiceVersion:             getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                   getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:                readTimeout,
		WriteTimeout:               writeTimeout,
		LogLevel:                   logLevel,
		LogFormat:                  logFormat,
		CORSAllowedOrigins:         splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		OpsToken:                   strings.TrimSpace(getEnv("OPS_TOKEN", "")),
		DBURL:                      strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary:    dbDisablePreparedBinary,
		CacheTTL:                   cacheTTL,
		FeedURL:                    strings.TrimSpace(getEnv("FEED_URL", "ws://localhost:8090/draft/feed")),
		FeedSessionURL:             strings.TrimSpace(getEnv("FEED_SESSION_URL", "")),
		FeedToken:                  strings.TrimSpace(getEnv("FEED_TOKEN", "")),
		FeedOrigin:                 strings.TrimSpace(getEnv("FEED_ORIGIN", "")),
		FeedDialTimeout:            feedDialTimeout,
		FeedWriteTimeout:           feedWriteTimeout,
		FeedSessionTimeout:         feedSessionTimeout,
		FeedCircuitEnabled:         feedCircuitEnabled,
		FeedCircuitFailureCount:    feedCircuitFailureCount,
		FeedCircuitOpenTimeout:     feedCircuitOpenTimeout,
		FeedCircuitHalfOpenMaxReq:  feedCircuitHalfOpenMaxReq,
		HeartbeatInterval:          heartbeatInterval,
		HeartbeatTimeout:           heartbeatTimeout,
		ReconnectMaxAttempts:       reconnectMaxAttempts,
		ReconnectBackoff:           reconnectBackoff,
		FrameBuffer:                frameBuffer,
		SnapshotCapacity:           snapshotCapacity,
		ValidationCheckEvery:       validationCheckEvery,
		ResolverWorkers:            resolverWorkers,
		ResolverDrainInterval:      resolverDrainInterval,
		JournalBuffer:              journalBuffer,
		JournalBatchSize:           journalBatchSize,
		JournalFlushInterval:       journalFlushInterval,
		JournalFlushTimeout:        journalFlushTimeout,
		JournalMemoryCapacity:      journalMemoryCapacity,
		PprofEnabled:               pprofEnabled,
		PprofAddr:                  pprofAddr,
		UptraceEnabled:             uptraceEnabled,
		UptraceDSN:                 uptraceDSN,
		BetterStackEnabled:         betterStackEnabled,
		BetterStackEndpoint:        betterStackEndpoint,
		BetterStackToken:           strings.TrimSpace(getEnv("BETTERSTACK_TOKEN", "")),
		BetterStackTimeout:         betterStackTimeout,
		BetterStackMinLevel:        betterStackMinLevel,
		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if cfg.FeedURL == "" {
		return Config{}, fmt.Errorf("FEED_URL cannot be empty")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	return cfg, nil
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

func parseLogFormat(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case LogFormatJSON, LogFormatConsole:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_LOG_FORMAT %q: valid values are %s, %s", v, LogFormatJSON, LogFormatConsole)
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseDurationList(raw string) ([]time.Duration, error) {
	items := splitCSV(raw)
	out := make([]time.Duration, 0, len(items))
	for _, item := range items {
		d, err := time.ParseDuration(item)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", item, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("duration must be > 0 in item %q", item)
		}
		out = append(out, d)
	}

	return out, nil
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}
