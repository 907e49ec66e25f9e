package config

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"orderly/normalization"
)

var validLogLevels = []string{"DEBUG", "INFO", "WARN", "ERROR"}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	var errors []string
	errors = append(errors, c.parseErrors...)

	// Валидация порта
	if c.Port == "" {
		errors = append(errors, "port is required")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid port: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got %d", port))
		}
	}
	if c.RateLimit <= 0 {
		errors = append(errors, "rate limit must be positive")
	}

	// Валидация хранилища
	if c.DatabasePath == "" {
		errors = append(errors, "database path is required")
	}
	if c.MaxOpenConns < 1 {
		errors = append(errors, "max open connections must be at least 1")
	}
	if c.MaxIdleConns < 1 {
		errors = append(errors, "max idle connections must be at least 1")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		errors = append(errors, "max idle connections cannot be greater than max open connections")
	}
	if c.ConnMaxLifetime < time.Second {
		errors = append(errors, "connection max lifetime must be at least 1 second")
	}
	if c.ExportDir == "" {
		errors = append(errors, "export dir is required")
	}
	if c.NormalizerCacheSize < 0 {
		errors = append(errors, "normalizer cache size must be >= 0")
	}

	// Валидация уровня логирования
	if c.LogLevel != "" && !slices.Contains(validLogLevels, strings.ToUpper(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level: %s (valid: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	// Параметры конвейера проверяет сам движок
	if err := c.EngineOptions().Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// GetDefaults возвращает конфигурацию со значениями по умолчанию
func GetDefaults() *Config {
	opts := normalization.DefaultOptions()
	return &Config{
		Port:                    "9999",
		RateLimit:               20,
		DatabasePath:            "orderly.db",
		MaxOpenConns:            10,
		MaxIdleConns:            3,
		ConnMaxLifetime:         5 * time.Minute,
		ExportDir:               "data/intermediate/curation_exports",
		SeedPath:                "seeds/ref_sku_names.csv",
		LogLevel:                "INFO",
		MaxEditDistance:         opts.MaxEditDistance,
		MinRepresentativeLength: opts.MinRepresentativeLength,
		TopMCanonicalTokens:     opts.TopMCanonicalTokens,
		TopKRankedAliases:       opts.TopKRankedAliases,
		AutoApprovalThreshold:   opts.AutoApprovalThreshold,
		Scorer:                  opts.Scorer,
		Workers:                 runtime.NumCPU(),
		NormalizerCacheSize:     4096,
	}
}
