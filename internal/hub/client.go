package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"routebinder/internal/binder"
	"routebinder/internal/models"
)

const DefaultTimeout = 10 * time.Second

// ErrHub is wrapped by every failure that came back from the hub as an
// {ok:false} answer or an unexpected status
var ErrHub = errors.New("hub request failed")

// errUndecodable marks a successful response whose body is not JSON
var errUndecodable = errors.New("failed to decode response")

// Client talks to a route binder hub from the device
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bootstrap fetches the truck, seed stops and inbox for a key. A rejected
// key returns binder.ErrKeyRejected. A 200 answer that is not JSON or says
// {ok:false} returns binder.ErrMalformedBootstrap. Transport failures and
// other statuses wrap ErrHub.
func (c *Client) Bootstrap(ctx context.Context, key string) (*models.BootstrapPayload, error) {
	req, err := c.newRequest(ctx, "/api/hub/bootstrap", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xtruckkey", strings.TrimSpace(key))

	var payload models.BootstrapPayload
	status, err := c.do(req, &payload)
	switch {
	case status == http.StatusUnauthorized:
		return nil, binder.ErrKeyRejected
	case errors.Is(err, errUndecodable):
		return nil, fmt.Errorf("%w: %w", binder.ErrMalformedBootstrap, err)
	case err != nil:
		return nil, err
	case !payload.OK:
		return nil, fmt.Errorf("%w: %s", binder.ErrMalformedBootstrap, firstNonEmpty(payload.Error, "bootstrap failed"))
	}
	c.logger.Debug("bootstrap fetched", zap.Int("stops", len(payload.Stops)), zap.Int("inbox", len(payload.InboxItems)))
	return &payload, nil
}

// Geocode resolves an address through the hub's proxy
func (c *Client) Geocode(ctx context.Context, q string) (*models.GeocodeResult, error) {
	req, err := c.newRequest(ctx, "/api/geocode", url.Values{"q": {q}})
	if err != nil {
		return nil, err
	}

	var body models.GeocodeResponse
	if _, err := c.do(req, &body); err != nil {
		return nil, err
	}
	if !body.OK {
		return nil, fmt.Errorf("%w: %s", ErrHub, firstNonEmpty(body.Error, "Geocode failed"))
	}
	return &models.GeocodeResult{
		Lat:       body.Lat,
		Lon:       body.Lon,
		Label:     firstNonEmpty(body.Label, q),
		QueryUsed: body.QueryUsed,
		Source:    body.Source,
	}, nil
}

// Weather fetches current conditions for a point through the hub's proxy
func (c *Client) Weather(ctx context.Context, lat, lon float64) (*models.WeatherResponse, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	req, err := c.newRequest(ctx, "/api/weather", params)
	if err != nil {
		return nil, err
	}

	var body models.WeatherResponse
	if _, err := c.do(req, &body); err != nil {
		return nil, err
	}
	if !body.OK {
		return nil, fmt.Errorf("%w: %s", ErrHub, firstNonEmpty(body.Error, "Weather failed"))
	}
	return &body, nil
}

func (c *Client) newRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a JSON body into out. {ok:false} bodies on error
// statuses are decoded too so their message reaches the caller.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHub, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: failed to read response: %w", ErrHub, err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &failure)
		c.logger.Debug("hub request failed",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("error", failure.Error))
		return resp.StatusCode, fmt.Errorf("%w: %s (status %d)", ErrHub, firstNonEmpty(failure.Error, http.StatusText(resp.StatusCode)), resp.StatusCode)
	}

	if err := models.DecodeLenient(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %w: %w", ErrHub, errUndecodable, err)
	}
	return resp.StatusCode, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
