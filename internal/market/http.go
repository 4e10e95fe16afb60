package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

// ErrRateLimited is returned when the quote API refuses for quota reasons.
var ErrRateLimited = errors.New("market: quote API rate limit exceeded")

// globalQuoteResponse is the GLOBAL_QUOTE payload of the quote API.
type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Information string `json:"Information"`
	Note        string `json:"Note"`
}

// HTTPFeed fetches quotes one symbol at a time from an Alpha Vantage style
// GLOBAL_QUOTE endpoint.
type HTTPFeed struct {
	client *resty.Client
	apiKey string
}

// NewHTTPFeed builds a feed against baseURL.
func NewHTTPFeed(baseURL, apiKey string, timeout time.Duration) *HTTPFeed {
	client := resty.New().
		SetTimeout(timeout).
		SetBaseURL(baseURL)
	return &HTTPFeed{client: client, apiKey: apiKey}
}

// Quotes implements Feed. A symbol that fails is logged and skipped; a
// rate limit stops the run.
func (f *HTTPFeed) Quotes(ctx context.Context, assets []model.Asset) ([]Quote, error) {
	out := make([]Quote, 0, len(assets))
	var lastErr error
	for _, a := range assets {
		q, err := f.quote(ctx, a.Ticker)
		if errors.Is(err, ErrRateLimited) {
			return out, err
		}
		if err != nil {
			slog.Warn("quote fetch failed", "ticker", a.Ticker, "err", err)
			lastErr = err
			continue
		}
		q.AssetID = a.ID
		out = append(out, q)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (f *HTTPFeed) quote(ctx context.Context, ticker string) (Quote, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"function": "GLOBAL_QUOTE",
			"symbol":   ticker,
			"apikey":   f.apiKey,
		}).
		Get("/query")
	if err != nil {
		return Quote{}, fmt.Errorf("request %s: %w", ticker, err)
	}
	if resp.IsError() {
		return Quote{}, fmt.Errorf("request %s: status %d", ticker, resp.StatusCode())
	}

	var body globalQuoteResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Quote{}, fmt.Errorf("decode %s: %w", ticker, err)
	}
	if msg := body.Information + body.Note; strings.Contains(strings.ToLower(msg), "rate limit") {
		return Quote{}, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	if body.GlobalQuote.Price == "" {
		return Quote{}, fmt.Errorf("no data returned for %s", ticker)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(body.GlobalQuote.Price))
	if err != nil {
		return Quote{}, fmt.Errorf("parse price %q: %w", body.GlobalQuote.Price, err)
	}
	change := decimal.Zero
	if raw := strings.TrimSuffix(strings.TrimSpace(body.GlobalQuote.ChangePercent), "%"); raw != "" {
		if change, err = decimal.NewFromString(raw); err != nil {
			return Quote{}, fmt.Errorf("parse change %q: %w", body.GlobalQuote.ChangePercent, err)
		}
	}
	return Quote{Ticker: ticker, Price: price, ChangePercent: change}, nil
}
