package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	AmadeusClientID     string
	AmadeusClientSecret string
	AmadeusTest         bool

	MaxHotelIDsPerCall int
	Cities             []string
	CheckinDays        int
	ImportRatings      bool
	Delay              time.Duration
	MaxRetries         int
	BackoffMultiplier  float64
	TokenBuffer        time.Duration
	CatalogTTL         time.Duration
	Workers            int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	boolv := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hotelsync?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		AmadeusClientID:     env("AMADEUS_CLIENT_ID", ""),
		AmadeusClientSecret: env("AMADEUS_CLIENT_SECRET", ""),
		AmadeusTest:         env("AMADEUS_ENV", "test") == "test",

		MaxHotelIDsPerCall: atoi("IMPORT_MAX_HOTELIDS_PER_CALL", 50),
		Cities:             splitCSV(env("IMPORT_CITIES", "BER,PAR,MUC")),
		CheckinDays:        atoi("IMPORT_CHECKIN_DAYS", 14),
		ImportRatings:      boolv("IMPORT_RATINGS", true),
		Delay:              time.Duration(atoi("IMPORT_DELAY_MS", 100)) * time.Millisecond,
		MaxRetries:         atoi("IMPORT_MAX_RETRIES", 3),
		BackoffMultiplier:  float64(atoi("IMPORT_BACKOFF_MULTIPLIER", 2)),
		TokenBuffer:        time.Duration(atoi("TOKEN_BUFFER_SECONDS", 300)) * time.Second,
		CatalogTTL:         time.Duration(atoi("CATALOG_CACHE_TTL_SECONDS", 900)) * time.Second,
		Workers:            atoi("IMPORT_WORKERS", 1),
	}
	if c.AmadeusClientID == "" {
		log.Warn().Msg("AMADEUS_CLIENT_ID is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
