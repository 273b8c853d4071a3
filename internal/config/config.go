package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"dteintake/internal/invoice"
	"dteintake/internal/logger"
)

type Config struct {
	// Profile Configuration
	ProfileFile string

	// Batch Configuration
	BatchWorkers int

	// PDF Configuration
	PDFMinTextLength int

	// Validation Configuration
	AmountTolerance    float64
	TaxTolerance       float64
	VATRate            float64
	MaxInvoiceAgeYears int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		BatchWorkers:       4,
		PDFMinTextLength:   50,
		AmountTolerance:    0.01,
		TaxTolerance:       0.05,
		VATRate:            0.13,
		MaxInvoiceAgeYears: 2,
		LogLevel:           "info",
		LogFormat:          "console",
		LogTimeFormat:      "2006-01-02T15:04:05Z07:00",
		LogOutput:          "stderr",
	}
}

func Load() (*Config, error) {
	d := Default()
	config := &Config{
		ProfileFile:        getEnv("PROFILE_FILE", d.ProfileFile),
		BatchWorkers:       getEnvInt("BATCH_WORKERS", d.BatchWorkers),
		PDFMinTextLength:   getEnvInt("PDF_MIN_TEXT_LENGTH", d.PDFMinTextLength),
		AmountTolerance:    getEnvFloat("AMOUNT_TOLERANCE", d.AmountTolerance),
		TaxTolerance:       getEnvFloat("TAX_TOLERANCE", d.TaxTolerance),
		VATRate:            getEnvFloat("VAT_RATE", d.VATRate),
		MaxInvoiceAgeYears: getEnvInt("MAX_INVOICE_AGE_YEARS", d.MaxInvoiceAgeYears),
		LogLevel:           getEnv("LOG_LEVEL", d.LogLevel),
		LogFormat:          getEnv("LOG_FORMAT", d.LogFormat),
		LogTimeFormat:      getEnv("LOG_TIME_FORMAT", d.LogTimeFormat),
		LogOutput:          getEnv("LOG_OUTPUT", d.LogOutput),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", c.BatchWorkers)
	}
	if c.PDFMinTextLength < 0 {
		return fmt.Errorf("PDF_MIN_TEXT_LENGTH must not be negative, got %d", c.PDFMinTextLength)
	}
	if c.AmountTolerance < 0 {
		return fmt.Errorf("AMOUNT_TOLERANCE must not be negative, got %v", c.AmountTolerance)
	}
	if c.TaxTolerance < 0 {
		return fmt.Errorf("TAX_TOLERANCE must not be negative, got %v", c.TaxTolerance)
	}
	if c.VATRate <= 0 || c.VATRate >= 1 {
		return fmt.Errorf("VAT_RATE must be between 0 and 1, got %v", c.VATRate)
	}
	if c.MaxInvoiceAgeYears < 1 {
		return fmt.Errorf("MAX_INVOICE_AGE_YEARS must be at least 1, got %d", c.MaxInvoiceAgeYears)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetValidatorConfig returns the validator tolerances from the main config
func (c *Config) GetValidatorConfig() invoice.ValidatorConfig {
	return invoice.ValidatorConfig{
		VATRate:         decimal.NewFromFloat(c.VATRate),
		AmountTolerance: decimal.NewFromFloat(c.AmountTolerance),
		TaxTolerance:    decimal.NewFromFloat(c.TaxTolerance),
		MaxAgeYears:     c.MaxInvoiceAgeYears,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt and getEnvFloat keep the default when the value does not parse;
// validate still rejects out-of-range numbers.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
