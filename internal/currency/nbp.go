package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"zlotowka/internal/cache"
)

const (
	// DefaultBaseURL is the NBP table A endpoint for mid exchange rates.
	DefaultBaseURL = "https://api.nbp.pl/api"

	// baseCurrency is the currency the NBP quotes everything against.
	baseCurrency = "PLN"
)

// NBPClient fetches mid exchange rates from the NBP API and caches them.
// All rates are quoted in PLN per unit; a cross conversion goes through PLN.
type NBPClient struct {
	baseURL string
	client  *http.Client
	rates   *cache.LRUCache[decimal.Decimal]
}

// NewNBPClient creates a converter backed by the NBP API. Rates are cached
// for ttl so a projection over many transactions hits the network at most
// once per currency.
func NewNBPClient(baseURL string, ttl time.Duration) *NBPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &NBPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		rates: cache.NewLRUCache[decimal.Decimal](64, ttl),
	}
}

type nbpRateResponse struct {
	Code  string `json:"code"`
	Rates []struct {
		EffectiveDate string          `json:"effectiveDate"`
		Mid           decimal.Decimal `json:"mid"`
	} `json:"rates"`
}

// Convert converts amount from one ISO code to another, rounding to two
// fractional digits. Failures come back as *ConversionError so callers can
// skip the affected transaction and continue.
func (c *NBPClient) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return amount.Round(2), nil
	}

	fromRate, err := c.midRate(ctx, from)
	if err != nil {
		return decimal.Zero, &ConversionError{From: from, To: to, Err: err}
	}
	toRate, err := c.midRate(ctx, to)
	if err != nil {
		return decimal.Zero, &ConversionError{From: from, To: to, Err: err}
	}

	// amount * (PLN per from-unit) / (PLN per to-unit)
	return amount.Mul(fromRate).DivRound(toRate, 2), nil
}

func (c *NBPClient) midRate(ctx context.Context, code string) (decimal.Decimal, error) {
	if code == baseCurrency {
		return decimal.NewFromInt(1), nil
	}

	if rate, ok := c.rates.Get(code); ok {
		return rate, nil
	}

	url := fmt.Sprintf("%s/exchangerates/rates/a/%s/?format=json", c.baseURL, strings.ToLower(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create rate request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: unexpected status %d for %s", ErrRateUnavailable, resp.StatusCode, code)
	}

	var payload nbpRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode response: %v", ErrRateUnavailable, err)
	}
	if len(payload.Rates) == 0 || !payload.Rates[0].Mid.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", ErrRateUnavailable, code)
	}

	rate := payload.Rates[0].Mid
	c.rates.Set(code, rate)
	slog.DebugContext(ctx, "Fetched exchange rate",
		"code", code,
		"mid", rate.String(),
		"effective_date", payload.Rates[0].EffectiveDate)

	return rate, nil
}
