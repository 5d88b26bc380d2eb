package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvoicingConfigHolderNilReturnsDefaults(t *testing.T) {
	var holder *InvoicingConfigHolder
	cfg := holder.Get()

	assert.Equal(t, 30, cfg.DefaultDueDays)
	assert.Equal(t, "QT-{SEQ4}", cfg.QuoteNumberTemplate)
	assert.Equal(t, 10, cfg.DefaultPageSize)
}

func TestStaticInvoicingConfigHolder(t *testing.T) {
	cfg := DefaultInvoicingConfig()
	cfg.DefaultDueDays = 14

	holder := NewStaticInvoicingConfigHolder(cfg)
	assert.Equal(t, 14, holder.Get().DefaultDueDays)
}

func TestValidateInvoicingConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*InvoicingConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*InvoicingConfig) {}},
		{name: "negative due days", mutate: func(c *InvoicingConfig) { c.DefaultDueDays = -1 }, wantErr: true},
		{name: "template without sequence", mutate: func(c *InvoicingConfig) { c.QuoteNumberTemplate = "QT-" }, wantErr: true},
		{name: "template with unknown token", mutate: func(c *InvoicingConfig) { c.QuoteNumberTemplate = "QT-{DD}-{SEQ}" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *InvoicingConfig) { c.QuoteNumberAttempts = 0 }, wantErr: true},
		{name: "max below default page", mutate: func(c *InvoicingConfig) { c.MaxPageSize = 5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultInvoicingConfig()
			tt.mutate(&cfg)
			err := validateInvoicingConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
