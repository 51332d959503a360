package config

import (
	"errors"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Sweep modes supported by the conflict detector.
const (
	SweepModeIndexed = "indexed"
	SweepModePerCell = "per_cell"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Timetable TimetableConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// TimetableConfig governs the scheduling engine.
type TimetableConfig struct {
	SchoolDays         []int
	Persistence        bool
	CatalogFile        string
	SweepMode          string
	PerCellMaxCells    int
	SweepConcurrency   int
	GenerationLockTTL  time.Duration
	ReportCacheTTL     time.Duration
	RefreshWorkers     int
	RefreshRetries     int
	SweepCron          string
	CheckSessionMaxAge time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Path:    v.GetString("METRICS_PATH"),
	}

	days, err := parseDays(v.GetString("TIMETABLE_SCHOOL_DAYS"))
	if err != nil {
		return nil, err
	}

	sweepMode := strings.ToLower(strings.TrimSpace(v.GetString("TIMETABLE_SWEEP_MODE")))
	if sweepMode != SweepModePerCell {
		sweepMode = SweepModeIndexed
	}

	cfg.Timetable = TimetableConfig{
		SchoolDays:         days,
		Persistence:        v.GetBool("TIMETABLE_PERSISTENCE"),
		CatalogFile:        strings.TrimSpace(v.GetString("TIMETABLE_CATALOG_FILE")),
		SweepMode:          sweepMode,
		PerCellMaxCells:    v.GetInt("TIMETABLE_PER_CELL_MAX_CELLS"),
		SweepConcurrency:   v.GetInt("TIMETABLE_SWEEP_CONCURRENCY"),
		GenerationLockTTL:  parseDuration(v.GetString("TIMETABLE_GENERATION_LOCK_TTL"), 2*time.Minute),
		ReportCacheTTL:     parseDuration(v.GetString("TIMETABLE_REPORT_CACHE_TTL"), 10*time.Minute),
		RefreshWorkers:     v.GetInt("TIMETABLE_REFRESH_WORKERS"),
		RefreshRetries:     v.GetInt("TIMETABLE_REFRESH_RETRIES"),
		SweepCron:          strings.TrimSpace(v.GetString("TIMETABLE_SWEEP_CRON")),
		CheckSessionMaxAge: parseDuration(v.GetString("TIMETABLE_CHECK_SESSION_MAX_AGE"), 30*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("TIMETABLE_SCHOOL_DAYS", "1,2,3,4,5")
	v.SetDefault("TIMETABLE_PERSISTENCE", false)
	v.SetDefault("TIMETABLE_CATALOG_FILE", "")
	v.SetDefault("TIMETABLE_SWEEP_MODE", SweepModeIndexed)
	v.SetDefault("TIMETABLE_PER_CELL_MAX_CELLS", 200)
	v.SetDefault("TIMETABLE_SWEEP_CONCURRENCY", 8)
	v.SetDefault("TIMETABLE_GENERATION_LOCK_TTL", "2m")
	v.SetDefault("TIMETABLE_REPORT_CACHE_TTL", "10m")
	v.SetDefault("TIMETABLE_REFRESH_WORKERS", 2)
	v.SetDefault("TIMETABLE_REFRESH_RETRIES", 2)
	v.SetDefault("TIMETABLE_SWEEP_CRON", "0 */15 * * * *")
	v.SetDefault("TIMETABLE_CHECK_SESSION_MAX_AGE", "30m")
}

// ParseDays is exported for callers that accept a school week from flags or payloads.
func ParseDays(raw string) ([]int, error) {
	return parseDays(raw)
}

func parseDays(raw string) ([]int, error) {
	parts := splitAndTrim(raw)
	if len(parts) == 0 {
		return []int{1, 2, 3, 4, 5}, nil
	}
	seen := make(map[int]struct{}, len(parts))
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		day, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.New("TIMETABLE_SCHOOL_DAYS must be a comma separated list of integers")
		}
		if day < 0 || day > 7 {
			return nil, errors.New("TIMETABLE_SCHOOL_DAYS entries must be between 0 and 7")
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Ints(days)
	return days, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
