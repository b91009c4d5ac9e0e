// Package rates fetches the base-to-local exchange rate used to price the
// subscription. A failed lookup never surfaces as an error: the provider
// answers with a configured fallback instead.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"splitpay/internal/metrics"
)

const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

// Quote is a rate together with where it came from.
type Quote struct {
	Value  float64
	Source string
}

// Provider is the read side used by the service layer.
type Provider interface {
	Rate(ctx context.Context) Quote
}

// Config controls the HTTP lookup.
type Config struct {
	URL      string
	Base     string
	Target   string
	Timeout  time.Duration
	Fallback float64
}

// DefaultConfig matches the public Frankfurter endpoint with a 3s deadline.
func DefaultConfig() Config {
	return Config{
		URL:      "https://api.frankfurter.app/latest",
		Base:     "USD",
		Target:   "JPY",
		Timeout:  3 * time.Second,
		Fallback: 150.0,
	}
}

// HTTPProvider queries a Frankfurter-compatible API.
type HTTPProvider struct {
	cfg     Config
	client  *http.Client
	metrics *metrics.Metrics
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider builds a provider. A nil client uses one with cfg.Timeout.
func NewHTTPProvider(cfg Config, client *http.Client, m *metrics.Metrics) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &HTTPProvider{cfg: cfg, client: client, metrics: m}
}

// Rate returns the live rate, or the fallback on any failure. It does not retry.
func (p *HTTPProvider) Rate(ctx context.Context) Quote {
	v, err := p.fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Rate fetch failed, using fallback",
			"error", err,
			"base", p.cfg.Base,
			"target", p.cfg.Target,
			"fallback", p.cfg.Fallback)
		p.metrics.RateQuotes.WithLabelValues(SourceFallback).Inc()
		return Quote{Value: p.cfg.Fallback, Source: SourceFallback}
	}
	slog.DebugContext(ctx, "Rate fetched", "base", p.cfg.Base, "target", p.cfg.Target, "rate", v)
	p.metrics.RateQuotes.WithLabelValues(SourceLive).Inc()
	return Quote{Value: v, Source: SourceLive}
}

type latestResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (p *HTTPProvider) fetch(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return 0, fmt.Errorf("parse rate url: %w", err)
	}
	q := u.Query()
	q.Set("from", p.cfg.Base)
	q.Set("to", p.cfg.Target)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("get rate: unexpected status %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}
	v, ok := body.Rates[p.cfg.Target]
	if !ok {
		return 0, fmt.Errorf("rate response missing %s", p.cfg.Target)
	}
	if v <= 0 {
		return 0, fmt.Errorf("rate response has non-positive %s rate %v", p.cfg.Target, v)
	}
	return v, nil
}

// Static always answers with the same quote. Used by the CLI's offline mode and tests.
type Static struct {
	Quote Quote
}

func (s Static) Rate(context.Context) Quote { return s.Quote }
