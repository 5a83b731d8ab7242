package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"umrah_prices/internal/adapters/providers"
	"umrah_prices/internal/app"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	Providers []providers.Config
	CacheTTLs map[string]int // seconds per source
	CacheTTL  int            // default seconds

	Resolver  app.ResolverConfig
	Risk      app.RiskConfig
	Scheduler app.SchedulerConfig
	Crawl     app.CrawlConfig

	Cities    []string
	DaysAhead []int // check-in horizons for the standing crawl set
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
	secs := func(k string, def int) time.Duration {
		return time.Duration(atoi(k, def)) * time.Second
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/umrah?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		CacheTTL: atoi("CACHE_TTL_SECONDS", 900),

		Resolver: app.ResolverConfig{
			GeoRadiusM:  float64(atoi("RESOLVER_GEO_RADIUS_M", 150)),
			NameCutoff:  0.85,
			AcceptScore: atoi("RESOLVER_ACCEPT_SCORE", 70),
			RejectScore: atoi("RESOLVER_REJECT_SCORE", 40),
			GeoWeight:   0.45,
			NameWeight:  0.55,
			RemapAfter:  atoi("RESOLVER_REMAP_AFTER", 3),
		},

		Risk: app.RiskConfig{
			MinObservations: atoi("RISK_MIN_OBSERVATIONS", 3),
			RecentLimit:     atoi("RISK_RECENT_LIMIT", 20),
			Seasons:         seasonWindows(env("SEASON_WINDOWS", defaultSeasons)),
		},

		Scheduler: app.SchedulerConfig{
			PollEvery:   secs("SCHEDULER_POLL_SECONDS", 5),
			Workers:     int64(atoi("CRAWL_WORKERS", 4)),
			JobTimeout:  secs("JOB_TIMEOUT_SECONDS", 90),
			BatchSize:   atoi("SCHEDULER_BATCH_SIZE", 10),
			MaxRetries:  atoi("JOB_MAX_RETRIES", 5),
			BackoffBase: secs("JOB_BACKOFF_BASE_SECONDS", 2),
			BackoffCap:  secs("JOB_BACKOFF_CAP_SECONDS", 300),
			MaxJobAge:   secs("JOB_MAX_AGE_SECONDS", 3600),
		},

		Crawl: app.CrawlConfig{
			SARToIDR:  atof("FX_SAR_IDR", 4250),
			DaysAhead: atoi("CRAWL_DAYS_AHEAD", 14),
		},

		Cities:    []string{"Makkah", "Madinah"},
		DaysAhead: []int{7, 14, 30},
	}

	c.Providers = []providers.Config{
		{
			Name:         "xotelo",
			BaseURL:      env("XOTELO_BASE_URL", "https://xotelo-hotel-prices.p.rapidapi.com/api"),
			APIKey:       env("RAPIDAPI_KEY", ""),
			RequiresKey:  true,
			RPS:          atoi("XOTELO_RPS", 2),
			Priority:     1,
			CacheTTLSec:  atoi("XOTELO_TTL_SECONDS", 1800),
			RefreshEvery: secs("XOTELO_REFRESH_SECONDS", 6*3600),
		},
		{
			Name:         "makcorps",
			BaseURL:      env("MAKCORPS_BASE_URL", "https://api.makcorps.com"),
			APIKey:       env("MAKCORPS_API_KEY", ""),
			RequiresKey:  true,
			RPS:          atoi("MAKCORPS_RPS", 1),
			Priority:     2,
			CacheTTLSec:  atoi("MAKCORPS_TTL_SECONDS", 3600),
			RefreshEvery: secs("MAKCORPS_REFRESH_SECONDS", 12*3600),
		},
		{
			Name:         "amadeus",
			BaseURL:      env("AMADEUS_BASE_URL", "https://test.api.amadeus.com"),
			APIKey:       env("AMADEUS_API_KEY", ""),
			RequiresKey:  true,
			RPS:          atoi("AMADEUS_RPS", 2),
			Priority:     3,
			CacheTTLSec:  atoi("AMADEUS_TTL_SECONDS", 1800),
			RefreshEvery: secs("AMADEUS_REFRESH_SECONDS", 6*3600),
		},
		{
			// keyless fallback so the pipeline always has a source
			Name:         "demo",
			Priority:     9,
			CacheTTLSec:  atoi("DEMO_TTL_SECONDS", 300),
			RefreshEvery: secs("DEMO_REFRESH_SECONDS", 3600),
		},
		{
			Name:         "haramain",
			BaseURL:      env("HARAMAIN_BASE_URL", "https://sar.hhr.sa"),
			Priority:     10,
			RefreshEvery: secs("TRANSPORT_REFRESH_SECONDS", 24*3600),
		},
		{
			Name:         "saptco",
			BaseURL:      env("SAPTCO_BASE_URL", "https://saptco.com.sa"),
			Priority:     11,
			RefreshEvery: secs("TRANSPORT_REFRESH_SECONDS", 24*3600),
		},
	}

	c.CacheTTLs = make(map[string]int, len(c.Providers))
	for _, p := range c.Providers {
		if p.CacheTTLSec > 0 {
			c.CacheTTLs[p.Name] = p.CacheTTLSec
		}
	}

	if os.Getenv("RAPIDAPI_KEY") == "" && os.Getenv("MAKCORPS_API_KEY") == "" && os.Getenv("AMADEUS_API_KEY") == "" {
		log.Warn().Msg("no provider API keys set; only demo and transport sources will run")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Demand peaks for the upcoming year. Gregorian approximations; override
// with SEASON_WINDOWS when the Hijri calendar shifts them.
const defaultSeasons = "Ramadan:2026-02-18:2026-03-20:2.0;Hajj:2026-05-20:2026-06-05:1.8;Eid al-Adha:2026-05-26:2026-05-30:1.9"

// seasonWindows parses "name:from:to:weight" triples separated by ';'.
// Malformed entries are logged and skipped rather than failing startup.
func seasonWindows(spec string) []app.SeasonWindow {
	var out []app.SeasonWindow
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			log.Warn().Str("entry", entry).Msg("bad season window, skipping")
			continue
		}
		from, err1 := time.Parse("2006-01-02", parts[1])
		to, err2 := time.Parse("2006-01-02", parts[2])
		weight, err3 := strconv.ParseFloat(parts[3], 64)
		if err1 != nil || err2 != nil || err3 != nil || to.Before(from) {
			log.Warn().Str("entry", entry).Msg("bad season window, skipping")
			continue
		}
		out = append(out, app.SeasonWindow{Name: parts[0], From: from, To: to, Weight: weight})
	}
	return out
}
