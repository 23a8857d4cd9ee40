package prediction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/riskmap/internal/resilience"
)

// Option configures the prediction client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit for upstream calls.
// A non-positive value disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Source backed by the prediction service at baseURL.
func NewClient(baseURL string, opts ...Option) Source {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(20, 20),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Prediction(ctx context.Context, key, model string, year int, cred Credential) (*Prediction, error) {
	params := url.Values{}
	params.Set("subcounty", key)
	params.Set("model", model)
	params.Set("year", strconv.Itoa(year))

	body, err := c.get(ctx, "/api/map-predictions", params, cred)
	if err != nil {
		return nil, err
	}

	var p Prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "prediction: decode prediction")
	}
	if err := p.Normalize(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (c *httpClient) FeatureImportance(ctx context.Context, model string, cred Credential) (*Importance, error) {
	params := url.Values{}
	params.Set("model", model)

	body, err := c.get(ctx, "/api/feature-importance", params, cred)
	if err != nil {
		return nil, err
	}

	var imp Importance
	if err := json.Unmarshal(body, &imp); err != nil {
		return nil, eris.Wrap(err, "prediction: decode importance")
	}
	if len(imp.FeatureNames) != len(imp.Values) {
		return nil, eris.Errorf("prediction: importance has %d names but %d values",
			len(imp.FeatureNames), len(imp.Values))
	}
	if imp.Model == "" {
		imp.Model = model
	}

	return &imp, nil
}

// get performs a rate-limited GET and classifies the response status:
// 404 is ErrNotFound, 408/429/5xx are transient, anything else non-200 is permanent.
func (c *httpClient) get(ctx context.Context, path string, params url.Values, cred Credential) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "prediction: rate limit wait")
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "prediction: create request")
	}
	req.Header.Set("Accept", "application/json")
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "prediction: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "prediction: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, resilience.StatusError("prediction", resp.StatusCode, body)
	}
}
