package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/billdesk/internal/numbering"
	"github.com/spf13/viper"
)

type InvoicingConfig struct {
	DefaultDueDays      int    `mapstructure:"defaultDueDays"`
	QuoteNumberTemplate string `mapstructure:"quoteNumberTemplate"`
	QuoteNumberAttempts int    `mapstructure:"quoteNumberAttempts"`
	DefaultPageSize     int    `mapstructure:"defaultPageSize"`
	MaxPageSize         int    `mapstructure:"maxPageSize"`
}

func DefaultInvoicingConfig() InvoicingConfig {
	return InvoicingConfig{
		DefaultDueDays:      30,
		QuoteNumberTemplate: "QT-{SEQ4}",
		QuoteNumberAttempts: 5,
		DefaultPageSize:     10,
		MaxPageSize:         100,
	}
}

type InvoicingConfigHolder struct {
	current atomic.Value // holds InvoicingConfig
}

func NewInvoicingConfigHolder() (*InvoicingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("invoicing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/billdesk")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BILLDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvoicingConfig()
	v.SetDefault("invoicing.defaultDueDays", defaults.DefaultDueDays)
	v.SetDefault("invoicing.quoteNumberTemplate", defaults.QuoteNumberTemplate)
	v.SetDefault("invoicing.quoteNumberAttempts", defaults.QuoteNumberAttempts)
	v.SetDefault("invoicing.defaultPageSize", defaults.DefaultPageSize)
	v.SetDefault("invoicing.maxPageSize", defaults.MaxPageSize)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg InvoicingConfig
	if err := v.UnmarshalKey("invoicing", &cfg); err != nil {
		return nil, err
	}
	if err := validateInvoicingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticInvoicingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvoicingConfig
		if err := v.UnmarshalKey("invoicing", &updated); err != nil {
			log.Printf("[invoicing-config] reload failed: %v", err)
			return
		}
		if err := validateInvoicingConfig(updated); err != nil {
			log.Printf("[invoicing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[invoicing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticInvoicingConfigHolder returns a holder that never reloads.
func NewStaticInvoicingConfigHolder(cfg InvoicingConfig) *InvoicingConfigHolder {
	holder := &InvoicingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// Get returns the active config. A nil holder yields the defaults.
func (h *InvoicingConfigHolder) Get() InvoicingConfig {
	if h == nil {
		return DefaultInvoicingConfig()
	}
	cfg, ok := h.current.Load().(InvoicingConfig)
	if !ok {
		return DefaultInvoicingConfig()
	}
	return cfg
}

func validateInvoicingConfig(cfg InvoicingConfig) error {
	if cfg.DefaultDueDays < 0 {
		return errors.New("invoicing.defaultDueDays cannot be negative")
	}
	if err := numbering.ValidateTemplate(cfg.QuoteNumberTemplate); err != nil {
		return fmt.Errorf("invoicing.quoteNumberTemplate: %w", err)
	}
	if cfg.QuoteNumberAttempts <= 0 {
		return errors.New("invoicing.quoteNumberAttempts must be positive")
	}
	if cfg.DefaultPageSize <= 0 || cfg.MaxPageSize < cfg.DefaultPageSize {
		return errors.New("invoicing page sizes are inconsistent")
	}
	return nil
}
