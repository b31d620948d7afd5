package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name   string
		format func(string) string
		want   string
	}{
		{"success", FormatSuccess, SuccessIcon},
		{"error", FormatError, ErrorIcon},
		{"warning", FormatWarning, WarningIcon},
		{"info", FormatInfo, InfoIcon},
		{"title", FormatTitle, WalletIcon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.format("hello")
			assert.Contains(t, out, "hello")
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"12.5", "USD", "12.50 USD"},
		{"-3", "EUR", "-3.00 EUR"},
		{"0", "", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Contains(t, FormatAmount(decimal.RequireFromString(tt.amount), tt.currency), tt.want)
		})
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"Name", "Balance"}, [][]string{
		{"Cash", "10.00"},
		{"Bank", "250.00"},
	})
	for _, want := range []string{"Name", "Balance", "Cash", "Bank", "250.00"} {
		assert.Contains(t, out, want)
	}
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 3)

	assert.Contains(t, RenderTable([]string{"Name"}, nil), "Nothing to show")
}

func TestRenderBox(t *testing.T) {
	out := RenderBox("Summary", "Balance 10")
	assert.Contains(t, out, "Summary")
	assert.Contains(t, out, "Balance 10")
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 2, "Loading")
	p.Step("wallets", 3)
	p.Step("transactions", 10)
	assert.NotEmpty(t, buf.String())
}
