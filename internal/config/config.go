package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/traderadar/backend/internal/apperr"
)

type LogConfig struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

type OracleConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	TTL            time.Duration
	CacheSize      int
	FallbackPrices map[string]float64
}

type MerkleConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AptosConfig struct {
	NodeURL         string
	HyperionAddress string
	KnownPools      []string
	Timeout         time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type PythConfig struct {
	Enabled           bool
	StreamURL         string
	FeedBySymbol      map[string]string
	ReconnectInterval time.Duration
}

// PriceTarget fires once when Symbol trades above (or below) Price.
type PriceTarget struct {
	Symbol string
	Above  bool
	Price  float64
}

type APIServerConfig struct {
	ListenAddr        string
	DBDSN             string
	AutoMigrate       bool
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	AllowedOrigins    []string
	ModuleAddress     string
	WebsocketInterval time.Duration
	Oracle            OracleConfig
	Merkle            MerkleConfig
	Aptos             AptosConfig
	Log               LogConfig
}

type TrackerConfig struct {
	DBDSN            string
	AutoMigrate      bool
	Symbols          []string
	PollInterval     time.Duration
	SnapshotInterval time.Duration
	TickRetention    time.Duration
	PriceTargets     []PriceTarget
	Oracle           OracleConfig
	Kafka            KafkaConfig
	Pyth             PythConfig
	MetricsAddr      string
	Log              LogConfig
}

type BotConfig struct {
	Token          string
	APIBaseURL     string
	RequestTimeout time.Duration
	PollTimeout    int
	Debug          bool
	Redis          RedisConfig
	Log            LogConfig
}

const (
	defaultCoinGeckoURL    = "https://api.coingecko.com/api/v3"
	defaultMerkleURL       = "https://api.testnet.merkle.trade/v1"
	defaultAptosNodeURL    = "https://fullnode.mainnet.aptoslabs.com/v1"
	defaultHyperionAddress = "0x8b4a2c4bb53857c718a04c020b98f8c2e1f99a68b0f57389a8bf5434cd22e05c"
	defaultAPTUSDCPool     = "0x925660b8618394809f89f8002e2926600c775221f43bf1919782b297a79400d8"
	defaultPythStreamURL   = "https://hermes.pyth.network/v2/updates/price/stream"
	defaultTrackedSymbols  = "APT,BTC,ETH,USDC,USDT"
	defaultPythFeeds       = "APT=03ae4db29ed4ae33d323568895aa00337e658e348b37509f5372ae51f0af00d5," +
		"BTC=e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43," +
		"ETH=ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"
)

func LoadAPIServerConfig() (APIServerConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return APIServerConfig{}, err
	}

	dbDSN, err := requireDSN("API_SERVER_DB_DSN")
	if err != nil {
		return APIServerConfig{}, err
	}
	autoMigrate, err := envBool("STORE_AUTO_MIGRATE", false)
	if err != nil {
		return APIServerConfig{}, err
	}

	readTimeout, err := envDuration("API_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return APIServerConfig{}, err
	}
	writeTimeout, err := envDuration("API_SERVER_WRITE_TIMEOUT", 15*time.Second)
	if err != nil {
		return APIServerConfig{}, err
	}
	idleTimeout, err := envDuration("API_SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return APIServerConfig{}, err
	}
	wsInterval, err := envDuration("API_SERVER_WS_INTERVAL", 2*time.Second)
	if err != nil {
		return APIServerConfig{}, err
	}

	oracle, err := loadOracleConfig()
	if err != nil {
		return APIServerConfig{}, err
	}
	merkle, err := loadMerkleConfig()
	if err != nil {
		return APIServerConfig{}, err
	}
	aptos, err := loadAptosConfig()
	if err != nil {
		return APIServerConfig{}, err
	}

	allowedOrigins := parseCSVEnv(
		envOrDefault("API_SERVER_ALLOWED_ORIGINS", "*"),
		[]string{"*"},
	)

	return APIServerConfig{
		ListenAddr:        envOrDefault("API_SERVER_LISTEN_ADDR", ":8080"),
		DBDSN:             dbDSN,
		AutoMigrate:       autoMigrate,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		AllowedOrigins:    allowedOrigins,
		ModuleAddress:     envOrDefault("MODULE_ADDRESS", ""),
		WebsocketInterval: wsInterval,
		Oracle:            oracle,
		Merkle:            merkle,
		Aptos:             aptos,
		Log:               buildLogConfig("API_SERVER", "api-server"),
	}, nil
}

func LoadTrackerConfig() (TrackerConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return TrackerConfig{}, err
	}

	dbDSN, err := requireDSN("TRACKER_DB_DSN")
	if err != nil {
		return TrackerConfig{}, err
	}
	autoMigrate, err := envBool("STORE_AUTO_MIGRATE", true)
	if err != nil {
		return TrackerConfig{}, err
	}
	pollInterval, err := envDuration("TRACKER_POLL_INTERVAL", time.Minute)
	if err != nil {
		return TrackerConfig{}, err
	}
	snapshotInterval, err := envDuration("TRACKER_SNAPSHOT_INTERVAL", 5*time.Minute)
	if err != nil {
		return TrackerConfig{}, err
	}
	retention, err := envDuration("TRACKER_TICK_RETENTION", 24*time.Hour)
	if err != nil {
		return TrackerConfig{}, err
	}
	targets, err := parsePriceTargets(envOrDefault("TRACKER_PRICE_TARGETS", ""))
	if err != nil {
		return TrackerConfig{}, err
	}

	oracle, err := loadOracleConfig()
	if err != nil {
		return TrackerConfig{}, err
	}

	pythEnabled, err := envBool("TRACKER_ENABLE_PYTH_STREAM", false)
	if err != nil {
		return TrackerConfig{}, err
	}
	pythReconnect, err := envDuration("TRACKER_PYTH_RECONNECT_INTERVAL", 3*time.Second)
	if err != nil {
		return TrackerConfig{}, err
	}
	feeds, err := parseKeyValueCSV("TRACKER_PYTH_FEEDS", envOrDefault("TRACKER_PYTH_FEEDS", defaultPythFeeds))
	if err != nil {
		return TrackerConfig{}, err
	}
	for symbol, feed := range feeds {
		feeds[symbol] = strings.ToLower(strings.TrimPrefix(feed, "0x"))
	}

	symbols := parseCSVEnv(envOrDefault("TRACKER_SYMBOLS", defaultTrackedSymbols), nil)
	for i := range symbols {
		symbols[i] = strings.ToUpper(symbols[i])
	}

	return TrackerConfig{
		DBDSN:            dbDSN,
		AutoMigrate:      autoMigrate,
		Symbols:          symbols,
		PollInterval:     pollInterval,
		SnapshotInterval: snapshotInterval,
		TickRetention:    retention,
		PriceTargets:     targets,
		Oracle:           oracle,
		Kafka: KafkaConfig{
			Brokers: parseCSVEnv(envOrDefault("KAFKA_BROKERS", ""), nil),
			Topic:   envOrDefault("KAFKA_ALERT_TOPIC", "traderadar.alerts"),
		},
		Pyth: PythConfig{
			Enabled:           pythEnabled,
			StreamURL:         envOrDefault("TRACKER_PYTH_STREAM_URL", defaultPythStreamURL),
			FeedBySymbol:      feeds,
			ReconnectInterval: pythReconnect,
		},
		MetricsAddr: envOrDefault("TRACKER_METRICS_ADDR", ""),
		Log:         buildLogConfig("TRACKER", "price-tracker"),
	}, nil
}

func LoadBotConfig() (BotConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return BotConfig{}, err
	}

	token := envOrDefault("TELEGRAM_BOT_TOKEN", "")
	if token == "" {
		return BotConfig{}, apperr.Errorf(apperr.KindConfig, "load bot config", "TELEGRAM_BOT_TOKEN is required")
	}
	timeout, err := envDuration("BOT_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return BotConfig{}, err
	}
	pollTimeout, err := envInt("BOT_POLL_TIMEOUT_SEC", 60)
	if err != nil {
		return BotConfig{}, err
	}
	debug, err := envBool("BOT_DEBUG", false)
	if err != nil {
		return BotConfig{}, err
	}
	redisDB, err := envNonNegativeInt("BOT_REDIS_DB", 0)
	if err != nil {
		return BotConfig{}, err
	}

	return BotConfig{
		Token:          token,
		APIBaseURL:     strings.TrimRight(envOrDefault("BOT_API_BASE_URL", "http://127.0.0.1:8080"), "/"),
		RequestTimeout: timeout,
		PollTimeout:    pollTimeout,
		Debug:          debug,
		Redis: RedisConfig{
			Addr:     envOrDefault("BOT_REDIS_ADDR", ""),
			Password: envOrDefault("BOT_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Log: buildLogConfig("BOT", "telegram-bot"),
	}, nil
}

type ConfigSource struct {
	Phase  string
	Path   string
	Loaded bool
}

func CurrentConfigSource() (ConfigSource, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ConfigSource{}, err
	}
	return ConfigSource{
		Phase:  runtimeFile.phase,
		Path:   runtimeFile.path,
		Loaded: runtimeFile.loaded,
	}, nil
}

func loadOracleConfig() (OracleConfig, error) {
	timeout, err := envDuration("ORACLE_TIMEOUT", 5*time.Second)
	if err != nil {
		return OracleConfig{}, err
	}
	ttl, err := envDuration("ORACLE_CACHE_TTL", 60*time.Second)
	if err != nil {
		return OracleConfig{}, err
	}
	size, err := envInt("ORACLE_CACHE_SIZE", 256)
	if err != nil {
		return OracleConfig{}, err
	}
	fallbacks, err := parseFallbackPrices(envOrDefault("ORACLE_FALLBACK_PRICES", ""))
	if err != nil {
		return OracleConfig{}, err
	}
	return OracleConfig{
		BaseURL:        strings.TrimRight(envOrDefault("ORACLE_BASE_URL", defaultCoinGeckoURL), "/"),
		APIKey:         envOrDefault("ORACLE_API_KEY", ""),
		Timeout:        timeout,
		TTL:            ttl,
		CacheSize:      size,
		FallbackPrices: fallbacks,
	}, nil
}

func loadMerkleConfig() (MerkleConfig, error) {
	timeout, err := envDuration("MERKLE_TIMEOUT", 10*time.Second)
	if err != nil {
		return MerkleConfig{}, err
	}
	return MerkleConfig{
		BaseURL: strings.TrimRight(envOrDefault("MERKLE_BASE_URL", defaultMerkleURL), "/"),
		Timeout: timeout,
	}, nil
}

func loadAptosConfig() (AptosConfig, error) {
	timeout, err := envDuration("APTOS_TIMEOUT", 10*time.Second)
	if err != nil {
		return AptosConfig{}, err
	}
	return AptosConfig{
		NodeURL:         strings.TrimRight(envOrDefault("APTOS_NODE_URL", defaultAptosNodeURL), "/"),
		HyperionAddress: strings.ToLower(envOrDefault("HYPERION_MODULE_ADDRESS", defaultHyperionAddress)),
		KnownPools:      parseCSVEnv(envOrDefault("HYPERION_KNOWN_POOLS", defaultAPTUSDCPool), []string{defaultAPTUSDCPool}),
		Timeout:         timeout,
	}, nil
}

// requireDSN resolves the database connection string for a binary. A missing
// value is a configuration error rather than a silent localhost default.
func requireDSN(key string) (string, error) {
	dsn := envOrDefault(key, envOrDefault("DATABASE_URL", ""))
	if dsn == "" {
		return "", apperr.Errorf(apperr.KindConfig, "load config", "%s or DATABASE_URL is required", key)
	}
	return dsn, nil
}

func buildLogConfig(prefix string, serviceName string) LogConfig {
	level := envOrDefault(prefix+"_LOG_LEVEL", envOrDefault("LOG_LEVEL", "info"))
	format := envOrDefault(prefix+"_LOG_FORMAT", envOrDefault("LOG_FORMAT", "text"))
	output := envOrDefault(prefix+"_LOG_OUTPUT", envOrDefault("LOG_OUTPUT", "console"))
	filePath := envOrDefault(prefix+"_LOG_FILE", envOrDefault("LOG_FILE", filepath.Join(".docker", serviceName, serviceName+".log")))

	return LogConfig{
		Level:    level,
		Format:   format,
		Output:   output,
		FilePath: filePath,
	}
}

// parseFallbackPrices reads "SYM=price" pairs, e.g. "APT=8.5,BTC=60000".
func parseFallbackPrices(raw string) (map[string]float64, error) {
	pairs, err := parseKeyValueCSV("ORACLE_FALLBACK_PRICES", raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(pairs))
	for symbol, value := range pairs {
		price, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ORACLE_FALLBACK_PRICES entry %q: %w", symbol, err)
		}
		if price <= 0 {
			return nil, fmt.Errorf("invalid ORACLE_FALLBACK_PRICES entry %q: must be > 0", symbol)
		}
		out[symbol] = price
	}
	return out, nil
}

// parsePriceTargets reads entries like "APT>12.5,BTC<50000".
func parsePriceTargets(raw string) ([]PriceTarget, error) {
	parts := parseCSVEnv(raw, nil)
	out := make([]PriceTarget, 0, len(parts))
	for _, part := range parts {
		above := true
		idx := strings.IndexByte(part, '>')
		if idx < 0 {
			above = false
			idx = strings.IndexByte(part, '<')
		}
		if idx <= 0 || idx == len(part)-1 {
			return nil, fmt.Errorf("invalid TRACKER_PRICE_TARGETS entry %q, expected SYMBOL>price or SYMBOL<price", part)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(part[idx+1:]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TRACKER_PRICE_TARGETS entry %q: %w", part, err)
		}
		out = append(out, PriceTarget{
			Symbol: strings.ToUpper(strings.TrimSpace(part[:idx])),
			Above:  above,
			Price:  price,
		})
	}
	return out, nil
}

func parseKeyValueCSV(key string, raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range parseCSVEnv(raw, nil) {
		name, value, ok := strings.Cut(part, "=")
		name = strings.ToUpper(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("invalid %s entry %q, expected KEY=value", key, part)
		}
		out[name] = value
	}
	return out, nil
}
