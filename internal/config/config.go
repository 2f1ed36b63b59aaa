package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	EtherscanAPIKey string
	EtherscanURL    string
	DBDSN           string
	HTTPAddr        string
	APIPrefix       string
	CORSOrigins     []string
	IdentityHeader  string
	RedisAddr       string
	CacheTTL        time.Duration
	ContentStoreDir string
	KafkaBrokers    []string
	KafkaTopic      string
	OtelEndpoint    string
	UpstreamTimeout time.Duration
	LogLevel        string
	LogFormat       string
	LogFile         string
	LogMaxSizeMB    int
	LogMaxBackups   int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	apiKey, ok := source.Lookup("ETHERSCAN_API_KEY")
	if !ok || strings.TrimSpace(apiKey) == "" {
		return Config{}, errors.New("ETHERSCAN_API_KEY is required")
	}

	etherscanURL, ok := source.Lookup("ETHERSCAN_URL")
	if !ok || strings.TrimSpace(etherscanURL) == "" {
		etherscanURL = "https://api.etherscan.io/api"
	}

	dbDSN, ok := source.Lookup("DB_DSN")
	if !ok || strings.TrimSpace(dbDSN) == "" {
		dbDSN = "root:@tcp(127.0.0.1:3306)/chainnotes?parseTime=true"
	}

	port, err := parseUintEnv(source, "PORT", 8080)
	if err != nil {
		return Config{}, err
	}
	if port == 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT: %d", port)
	}
	httpAddr := fmt.Sprintf(":%d", port)
	if raw, ok := source.Lookup("HTTP_ADDR"); ok && raw != "" {
		httpAddr = raw
	}

	apiPrefix := "/api/interview"
	if raw, ok := source.Lookup("API_PREFIX"); ok {
		apiPrefix = normalizePrefix(raw)
	}

	corsOrigins, err := parseList(source, "CORS_ORIGINS", "http://localhost:5173")
	if err != nil {
		return Config{}, err
	}

	identityHeader, ok := source.Lookup("IDENTITY_HEADER")
	if !ok || strings.TrimSpace(identityHeader) == "" {
		identityHeader = "X-User-ID"
	}

	redisAddr := "127.0.0.1:6379"
	if raw, ok := source.Lookup("REDIS_ADDR"); ok {
		redisAddr = strings.TrimSpace(raw)
	}
	cacheTTL, err := parseDurationEnv(source, "CACHE_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}

	contentStoreDir, _ := source.Lookup("CONTENT_STORE_DIR")

	var kafkaBrokers []string
	if raw, ok := source.Lookup("KAFKA_BROKERS"); ok && strings.TrimSpace(raw) != "" {
		kafkaBrokers, err = parseList(source, "KAFKA_BROKERS", "")
		if err != nil {
			return Config{}, err
		}
	}
	kafkaTopic, ok := source.Lookup("KAFKA_TOPIC")
	if !ok || kafkaTopic == "" {
		kafkaTopic = "chainnotes-events"
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelEndpoint = strings.TrimSpace(otelEndpoint)

	upstreamTimeout, err := parseDurationEnv(source, "UPSTREAM_TIMEOUT", 0)
	if err != nil {
		return Config{}, err
	}

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFormat, ok := source.Lookup("LOG_FORMAT")
	logFormat = strings.ToLower(strings.TrimSpace(logFormat))
	if !ok || logFormat == "" {
		logFormat = "text"
	}
	if logFormat != "text" && logFormat != "json" {
		return Config{}, fmt.Errorf("invalid LOG_FORMAT: %s", logFormat)
	}
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	return Config{
		EtherscanAPIKey: apiKey,
		EtherscanURL:    etherscanURL,
		DBDSN:           dbDSN,
		HTTPAddr:        httpAddr,
		APIPrefix:       apiPrefix,
		CORSOrigins:     corsOrigins,
		IdentityHeader:  identityHeader,
		RedisAddr:       redisAddr,
		CacheTTL:        cacheTTL,
		ContentStoreDir: strings.TrimSpace(contentStoreDir),
		KafkaBrokers:    kafkaBrokers,
		KafkaTopic:      kafkaTopic,
		OtelEndpoint:    otelEndpoint,
		UpstreamTimeout: upstreamTimeout,
		LogLevel:        logLevel,
		LogFormat:       logFormat,
		LogFile:         strings.TrimSpace(logFile),
		LogMaxSizeMB:    int(logMaxSize),
		LogMaxBackups:   int(logMaxBackups),
	}, nil
}

func normalizePrefix(raw string) string {
	prefix := strings.TrimSpace(raw)
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return value, nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	items := strings.Split(raw, ",")
	var values []string
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}

// ConsumerConfig configures the events tail. It does not need the API credentials.
type ConsumerConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
	OtelEndpoint string
	LogLevel     string
	LogFormat    string
}

func LoadConsumer(source EnvSource) (ConsumerConfig, error) {
	if source == nil {
		return ConsumerConfig{}, errors.New("env source is required")
	}
	brokers, err := parseList(source, "KAFKA_BROKERS", "")
	if err != nil {
		return ConsumerConfig{}, err
	}
	topic, ok := source.Lookup("KAFKA_TOPIC")
	if !ok || topic == "" {
		topic = "chainnotes-events"
	}
	groupID, ok := source.Lookup("KAFKA_GROUP_ID")
	if !ok || groupID == "" {
		groupID = "chainnotes-events-tail"
	}
	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFormat, _ := source.Lookup("LOG_FORMAT")
	return ConsumerConfig{
		KafkaBrokers: brokers,
		KafkaTopic:   topic,
		KafkaGroupID: groupID,
		OtelEndpoint: strings.TrimSpace(otelEndpoint),
		LogLevel:     logLevel,
		LogFormat:    logFormat,
	}, nil
}
