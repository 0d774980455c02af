package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type HTTPConfig struct {
	Endpoint    string
	HTTPTimeout time.Duration
	// RequestsPerSecond caps outbound calls; 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// HTTPClient talks to a chronik-compatible JSON indexer.
type HTTPClient struct {
	base       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("empty ledger endpoint")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse ledger endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ledger endpoint: %s", endpoint)
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	c := &HTTPClient{
		base:       strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

func (c *HTTPClient) History(ctx context.Context, address string, page, pageSize int) (HistoryPage, error) {
	var out HistoryPage
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	err := c.getJSON(ctx, "/address/"+url.PathEscape(address)+"/history?"+q.Encode(), &out)
	return out, err
}

func (c *HTTPClient) Utxos(ctx context.Context, address string) ([]Utxo, error) {
	var out struct {
		Utxos []Utxo `json:"utxos"`
	}
	if err := c.getJSON(ctx, "/address/"+url.PathEscape(address)+"/utxos", &out); err != nil {
		return nil, err
	}
	return out.Utxos, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: GET %s: status %d: %s", ErrUnavailable, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return nil
}
