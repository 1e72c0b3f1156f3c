// Package provider supplies historical option-chain data for the simulator.
// It includes the ORATS data API client implementation.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.orats.io/datav2"

	// chainFields is the field list requested on every strikes-history call.
	chainFields = "ticker,tradeDate,expirDate,dte,strike,stockPrice,callValue,delta,gamma"

	dateFormat = "2006-01-02"
)

// ErrNoData is returned when the provider responds successfully but carries
// no chain rows. Callers must treat it as a distinct data-unavailable
// condition instead of indexing into an empty chain.
var ErrNoData = errors.New("provider returned no data")

// APIError represents a provider API error with status code and response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// DTERange is a days-to-expire filter, inclusive on both ends.
type DTERange struct {
	Min int
	Max int
}

func (r DTERange) String() string {
	return fmt.Sprintf("%d,%d", r.Min, r.Max)
}

// DeltaRange is a delta filter, inclusive on both ends.
type DeltaRange struct {
	Min float64
	Max float64
}

func (r DeltaRange) String() string {
	return fmt.Sprintf("%g,%g", r.Min, r.Max)
}

// OptionRow is a single option-chain row from the strikes-history endpoint.
type OptionRow struct {
	Ticker     string  `json:"ticker"`
	TradeDate  string  `json:"tradeDate"`
	ExpirDate  string  `json:"expirDate"`
	DTE        int     `json:"dte"`
	Strike     float64 `json:"strike"`
	StockPrice float64 `json:"stockPrice"`
	CallValue  float64 `json:"callValue"`
	Delta      float64 `json:"delta"`
	Gamma      float64 `json:"gamma"`
}

// ParseDate parses a provider date string (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid provider date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a time in the provider's date format.
func FormatDate(t time.Time) string {
	return t.Format(dateFormat)
}

// TickerWindow describes the earliest and latest trade dates the provider
// has history for.
type TickerWindow struct {
	Ticker string `json:"ticker"`
	Min    string `json:"min"`
	Max    string `json:"max"`
}

type strikesResponse struct {
	Data []OptionRow `json:"data"`
}

type tickersResponse struct {
	Data []TickerWindow `json:"data"`
}

// OratsAPI is an HTTP client for the ORATS historical data API.
type OratsAPI struct {
	client  *http.Client
	token   string
	baseURL string
	timeout time.Duration
}

// NewOratsAPI creates a new ORATS client with default settings.
func NewOratsAPI(token string) *OratsAPI {
	return NewOratsAPIWithBaseURL(token, "")
}

// NewOratsAPIWithBaseURL creates a new ORATS client with an optional custom
// base URL (tests, proxies).
func NewOratsAPIWithBaseURL(token, baseURL string) *OratsAPI {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	const defaultTimeout = 10 * time.Second
	return &OratsAPI{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		timeout: defaultTimeout,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (o *OratsAPI) WithHTTPClient(c *http.Client) *OratsAPI {
	if c != nil {
		o.client = c
	}
	return o
}

// WithTimeout sets the HTTP client timeout duration.
func (o *OratsAPI) WithTimeout(timeout time.Duration) *OratsAPI {
	o.timeout = timeout
	if o.client != nil {
		o.client.Timeout = timeout
	}
	return o
}

// GetStrikesHistory retrieves the option-chain snapshot for the tickers on a
// trade date, filtered by DTE and delta. Returns ErrNoData when the provider
// has no rows for the query.
func (o *OratsAPI) GetStrikesHistory(
	ctx context.Context,
	tickers []string,
	tradeDate time.Time,
	dte DTERange,
	delta DeltaRange,
) ([]OptionRow, error) {
	params := url.Values{}
	params.Set("token", o.token)
	params.Set("ticker", strings.Join(tickers, ","))
	params.Set("tradeDate", tradeDate.Format(dateFormat))
	params.Set("dte", dte.String())
	params.Set("delta", delta.String())
	params.Set("fields", chainFields)
	endpoint := o.baseURL + "/hist/strikes?" + params.Encode()

	var response strikesResponse
	if err := o.makeRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("%w: strikes for %s on %s",
			ErrNoData, strings.Join(tickers, ","), tradeDate.Format(dateFormat))
	}
	return response.Data, nil
}

// GetTickerWindows retrieves the available trade-history window for each
// ticker.
func (o *OratsAPI) GetTickerWindows(ctx context.Context, tickers []string) ([]TickerWindow, error) {
	params := url.Values{}
	params.Set("token", o.token)
	params.Set("ticker", strings.Join(tickers, ","))
	endpoint := o.baseURL + "/tickers?" + params.Encode()

	var response tickersResponse
	if err := o.makeRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("%w: trade-history windows for %s",
			ErrNoData, strings.Join(tickers, ","))
	}
	return response.Data, nil
}

// makeRequest performs a GET with context support for timeout/cancellation.
func (o *OratsAPI) makeRequest(ctx context.Context, endpoint string, response interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "leapsfrog/1.0 (+orats)")

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: "failed to read error body"}
		}
		return &APIError{Status: resp.StatusCode, Body: sanitizeToken(string(body), o.token)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(response); err != nil && err != io.EOF {
		return fmt.Errorf("decoding provider response: %w", err)
	}
	return nil
}

// sanitizeToken keeps the API token out of error strings and logs.
func sanitizeToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "[redacted]")
}
