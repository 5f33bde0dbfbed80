// Package yahoo fetches daily closing-price history from the Yahoo Finance
// chart API. It is the external price source feeding the history store; the
// simulation engines never call it directly.
package yahoo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pnlync/asset-forecast-api/internal/domain"
	"github.com/pnlync/asset-forecast-api/internal/history"
)

// Client is a Yahoo Finance chart API client.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// SetBaseURL overrides the API base URL. Used in tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// chartResponse represents the response from the v8 chart API.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// GetDailyHistory fetches daily closes for a symbol over the given range
// (e.g. "1y"). Returns ErrDataUnavailable when Yahoo has no usable bars.
func (c *Client) GetDailyHistory(symbol, rangeParam string) ([]history.DailyPrice, error) {
	if rangeParam == "" {
		rangeParam = "1y"
	}

	reqURL := fmt.Sprintf("%s/%s?range=%s&interval=1d",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(rangeParam))

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "curl/8")

	c.log.Debug().Str("symbol", symbol).Str("range", rangeParam).Msg("Fetching daily history")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart API request failed for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("symbol %s unknown to chart API: %w", symbol, domain.ErrDataUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API returned status %d for %s", resp.StatusCode, symbol)
	}

	var cr chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("failed to parse chart response for %s: %w", symbol, err)
	}

	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no chart data for %s: %w", symbol, domain.ErrDataUnavailable)
	}

	ts := cr.Chart.Result[0].Timestamp
	closes := cr.Chart.Result[0].Indicators.Quote[0].Close

	prices := make([]history.DailyPrice, 0, len(ts))
	for i := range ts {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		prices = append(prices, history.DailyPrice{
			Date:  time.Unix(ts[i], 0).UTC().Format("2006-01-02"),
			Close: closes[i],
		})
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("no usable bars for %s: %w", symbol, domain.ErrDataUnavailable)
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("bars", len(prices)).
		Msg("Fetched daily history")

	return prices, nil
}
