package buildCFG

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"meetapp/internal/mailer"
)

type ServerConfig struct {
	Port        string
	FileBaseURL string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LoadDotenv pulls a local .env into the environment before the YAML config
// is read, so environment overrides win. Missing .env is not an error.
func LoadDotenv(log *zerolog.Logger) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
	}
	baseURL := cfg.GetString("files.base_url")
	if baseURL == "" {
		baseURL = "http://localhost:" + port + "/files"
	}

	log.Info().Str("port", port).Msg("server config loaded")
	return ServerConfig{Port: port, FileBaseURL: baseURL}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("db.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("db.master_dsn is required")
	}
	slaveDSNs := cfg.GetStringSlice("db.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("db.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("db.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("db.conn_max_lifetime"),
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}

	log.Info().Int("slaves", len(slaveDSNs)).Msg("DB config loaded")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Url:      cfg.GetString("rabbit.url"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Url == "" {
		return RabbitConfig{}, fmt.Errorf("rabbit.url is required")
	}
	if rc.Exchange == "" {
		rc.Exchange = "meetapp.notifications"
	}
	if rc.Queue == "" {
		rc.Queue = "meetapp.subscription-emails"
	}

	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("RabbitMQ config loaded")
	return rc, nil
}

func BuildRedisConfig(cfg *config.Config, log *zerolog.Logger) RedisConfig {
	rc := RedisConfig{
		Addr:     cfg.GetString("redis.addr"),
		Password: cfg.GetString("redis.password"),
		DB:       cfg.GetInt("redis.db"),
		TTL:      cfg.GetDuration("redis.listing_ttl"),
	}
	if rc.TTL == 0 {
		rc.TTL = 30 * time.Second
	}

	log.Info().Str("addr", rc.Addr).Msg("Redis config loaded")
	return rc
}

func BuildSMTPConfig(cfg *config.Config, log *zerolog.Logger) (mailer.Config, error) {
	mc := mailer.Config{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetString("smtp.port"),
		From:     cfg.GetString("smtp.from"),
		Password: cfg.GetString("smtp.password"),
	}
	if mc.Host == "" || mc.From == "" {
		return mailer.Config{}, fmt.Errorf("smtp.host and smtp.from are required")
	}
	if mc.Port == "" {
		mc.Port = "587"
	}

	log.Info().Str("host", mc.Host).Msg("SMTP config loaded")
	return mc, nil
}
