package currency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newRateServer(t *testing.T, rates map[string]string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		for code, mid := range rates {
			if r.URL.Path == "/exchangerates/rates/a/"+code+"/" {
				fmt.Fprintf(w, `{"code":%q,"rates":[{"effectiveDate":"2024-03-01","mid":%s}]}`, code, mid)
				return
			}
		}
		http.NotFound(w, r)
	}))
}

func TestNBPClientConvert(t *testing.T) {
	srv := newRateServer(t, map[string]string{"eur": "4.50", "usd": "4.00"}, nil)
	defer srv.Close()

	client := NewNBPClient(srv.URL, time.Minute)
	ctx := context.Background()

	tests := []struct {
		name     string
		amount   string
		from, to string
		want     string
	}{
		{name: "foreign to base", amount: "100", from: "EUR", to: "PLN", want: "450"},
		{name: "base to foreign", amount: "450", from: "PLN", to: "EUR", want: "100"},
		{name: "cross through base", amount: "100", from: "EUR", to: "USD", want: "112.5"},
		{name: "same currency is identity", amount: "12.34", from: "PLN", to: "PLN", want: "12.34"},
		{name: "rounds to two digits", amount: "10", from: "USD", to: "EUR", want: "8.89"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.Convert(ctx, decimal.RequireFromString(tt.amount), tt.from, tt.to)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if want := decimal.RequireFromString(tt.want); !got.Equal(want) {
				t.Errorf("Convert(%s %s->%s) = %s, want %s", tt.amount, tt.from, tt.to, got, want)
			}
		})
	}
}

func TestNBPClientUnknownCurrency(t *testing.T) {
	srv := newRateServer(t, map[string]string{"eur": "4.50"}, nil)
	defer srv.Close()

	client := NewNBPClient(srv.URL, time.Minute)
	_, err := client.Convert(context.Background(), decimal.NewFromInt(10), "EUR", "XXX")
	if err == nil {
		t.Fatal("expected error for unknown currency")
	}

	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConversionError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("expected ErrRateUnavailable in chain, got %v", err)
	}
}

func TestNBPClientCachesRates(t *testing.T) {
	var hits atomic.Int64
	srv := newRateServer(t, map[string]string{"eur": "4.50"}, &hits)
	defer srv.Close()

	client := NewNBPClient(srv.URL, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.Convert(ctx, decimal.NewFromInt(1), "EUR", "PLN"); err != nil {
			t.Fatalf("Convert: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("rate endpoint hit %d times, want 1", got)
	}
}
