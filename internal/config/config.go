package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"orderly/normalization"
)

// Config конфигурация курирования, хранилища и API ревью
type Config struct {
	// Сервер
	Port      string  `json:"port"`
	RateLimit float64 `json:"rate_limit"`

	// Хранилище
	DatabasePath    string        `json:"database_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Выгрузки и справочник
	ExportDir string `json:"export_dir"`
	SeedPath  string `json:"seed_path"`

	// Логирование
	LogLevel string `json:"log_level"`

	// Параметры конвейера
	MaxEditDistance         int     `json:"max_edit_distance"`
	MinRepresentativeLength int     `json:"min_representative_length"`
	TopMCanonicalTokens     int     `json:"top_m_canonical_tokens"`
	TopKRankedAliases       int     `json:"top_k_ranked_aliases"`
	AutoApprovalThreshold   float64 `json:"auto_approval_score_threshold"`
	Scorer                  string  `json:"scorer"`
	Workers                 int     `json:"workers"`

	// Профили нормализации
	ProfilePath         string `json:"profile_path"`
	NormalizerCacheSize int    `json:"normalizer_cache_size"`

	// parseErrors нераспознанные значения переменных окружения, попадают в Validate
	parseErrors []string
}

// LoadConfig загружает конфигурацию из переменных окружения и проверяет ее
func LoadConfig() (*Config, error) {
	defaults := normalization.DefaultOptions()
	env := &envParser{}

	config := &Config{
		// Сервер
		Port:      getEnv("SERVER_PORT", "9999"),
		RateLimit: env.getFloat("ORDERLY_RATE_LIMIT", 20),

		// Хранилище
		DatabasePath:    getEnv("ORDERLY_DATABASE_PATH", "orderly.db"),
		MaxOpenConns:    env.getInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    env.getInt("DB_MAX_IDLE_CONNS", 3),
		ConnMaxLifetime: env.getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		ExportDir: getEnv("ORDERLY_EXPORT_DIR", "data/intermediate/curation_exports"),
		SeedPath:  getEnv("ORDERLY_SEED_PATH", "seeds/ref_sku_names.csv"),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		MaxEditDistance:         env.getInt("ORDERLY_MAX_EDIT_DISTANCE", defaults.MaxEditDistance),
		MinRepresentativeLength: env.getInt("ORDERLY_MIN_REPRESENTATIVE_LENGTH", defaults.MinRepresentativeLength),
		TopMCanonicalTokens:     env.getInt("ORDERLY_TOP_M_CANONICAL_TOKENS", defaults.TopMCanonicalTokens),
		TopKRankedAliases:       env.getInt("ORDERLY_TOP_K_RANKED_ALIASES", defaults.TopKRankedAliases),
		AutoApprovalThreshold:   env.getFloat("ORDERLY_AUTO_APPROVAL_THRESHOLD", defaults.AutoApprovalThreshold),
		Scorer:                  getEnv("ORDERLY_SCORER", defaults.Scorer),
		Workers:                 env.getInt("ORDERLY_WORKERS", runtime.NumCPU()),

		ProfilePath:         os.Getenv("ORDERLY_PROFILE_PATH"),
		NormalizerCacheSize: env.getInt("ORDERLY_NORMALIZER_CACHE_SIZE", 4096),

		parseErrors: env.errors,
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// EngineOptions параметры конвейера курирования
func (c *Config) EngineOptions() normalization.Options {
	return normalization.Options{
		MaxEditDistance:         c.MaxEditDistance,
		MinRepresentativeLength: c.MinRepresentativeLength,
		TopMCanonicalTokens:     c.TopMCanonicalTokens,
		TopKRankedAliases:       c.TopKRankedAliases,
		AutoApprovalThreshold:   c.AutoApprovalThreshold,
		Scorer:                  c.Scorer,
		Workers:                 c.Workers,
	}
}

// NewEngine собирает CurationEngine с профилями из файла ORDERLY_PROFILE_PATH, если он задан
func (c *Config) NewEngine(options ...normalization.EngineOption) (*normalization.CurationEngine, error) {
	if c.ProfilePath != "" {
		profiles, err := LoadProfiles(c.ProfilePath)
		if err != nil {
			return nil, err
		}
		normalizers, err := profiles.EngineOptions(c.NormalizerCacheSize)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded %d normalization profiles from %s", len(profiles.Profiles), c.ProfilePath)
		options = append(normalizers, options...)
	}
	return normalization.NewCurationEngine(c.EngineOptions(), options...)
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser читает типизированные переменные окружения и запоминает ошибки разбора
type envParser struct {
	errors []string
}

func (p *envParser) fail(key, value, kind string) {
	p.errors = append(p.errors, fmt.Sprintf("%s: invalid %s %q", key, kind, value))
}

// getInt получает переменную окружения как int или возвращает значение по умолчанию
func (p *envParser) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		p.fail(key, value, "integer")
		return defaultValue
	}
	return intValue
}

// getFloat получает переменную окружения как float64 или возвращает значение по умолчанию
func (p *envParser) getFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		p.fail(key, value, "number")
		return defaultValue
	}
	return floatValue
}

// getDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func (p *envParser) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		p.fail(key, value, "duration")
		return defaultValue
	}
	return duration
}
