package tado

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/mjasion/balena-home/climate/pkg/metrics"
)

const (
	DefaultBaseURL          = "https://my.tado.com/api/v2"
	DefaultTokenURL         = "https://auth.tado.com/oauth/token"
	DefaultMaxResponseBytes = 8 << 20

	maxErrorBody = 512
)

// API is the read-only vendor surface the collector depends on
type API interface {
	Me(ctx context.Context) (*User, error)
	Zones(ctx context.Context, homeID int64) ([]Zone, error)
	DayReport(ctx context.Context, homeID, zoneID int64, day time.Time) (*DayReport, error)
	ZoneState(ctx context.Context, homeID, zoneID int64) (*ZoneState, error)
	Weather(ctx context.Context, homeID int64) (*Weather, error)
	Devices(ctx context.Context, homeID int64) ([]Device, error)
}

// Options configure a Client. Zero values select the defaults.
type Options struct {
	BaseURL          string
	TokenURL         string
	Timeout          time.Duration
	MaxResponseBytes int64
	Counters         *metrics.Counters
}

// Client is an authenticated vendor API client
type Client struct {
	httpClient *http.Client
	session    *session
	baseURL    string
	maxBytes   int64
	breaker    *gobreaker.CircuitBreaker
	counters   *metrics.Counters
	logger     *zap.Logger
}

var _ API = (*Client)(nil)

// errUpstream marks responses that count against the circuit breaker
var errUpstream = errors.New("upstream failure")

// NewClient creates a client that signs in with creds
func NewClient(creds Credentials, opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = DefaultMaxResponseBytes
	}

	httpClient := &http.Client{
		Timeout:   opts.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tado",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		httpClient: httpClient,
		session:    newSession(creds, opts.TokenURL, httpClient),
		baseURL:    opts.BaseURL,
		maxBytes:   opts.MaxResponseBytes,
		breaker:    breaker,
		counters:   opts.Counters,
		logger:     logger,
	}
}

// Me returns the signed-in user and the homes it can see
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, "me", "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Zones lists the zones of a home
func (c *Client) Zones(ctx context.Context, homeID int64) ([]Zone, error) {
	var zones []Zone
	if err := c.getJSON(ctx, "zones", homePath(homeID, "/zones"), nil, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// DayReport fetches the historic report of one zone for the UTC calendar day containing day
func (c *Client) DayReport(ctx context.Context, homeID, zoneID int64, day time.Time) (*DayReport, error) {
	query := url.Values{"date": {day.UTC().Format(time.DateOnly)}}
	var report DayReport
	if err := c.getJSON(ctx, "dayReport", zonePath(homeID, zoneID, "/dayReport"), query, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ZoneState fetches the current state of one zone
func (c *Client) ZoneState(ctx context.Context, homeID, zoneID int64) (*ZoneState, error) {
	var state ZoneState
	if err := c.getJSON(ctx, "zoneState", zonePath(homeID, zoneID, "/state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Weather fetches the current weather at a home
func (c *Client) Weather(ctx context.Context, homeID int64) (*Weather, error) {
	var weather Weather
	if err := c.getJSON(ctx, "weather", homePath(homeID, "/weather"), nil, &weather); err != nil {
		return nil, err
	}
	return &weather, nil
}

// Devices lists the devices of a home
func (c *Client) Devices(ctx context.Context, homeID int64) ([]Device, error) {
	var devices []Device
	if err := c.getJSON(ctx, "devices", homePath(homeID, "/devices"), nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func homePath(homeID int64, suffix string) string {
	return "/homes/" + strconv.FormatInt(homeID, 10) + suffix
}

func zonePath(homeID, zoneID int64, suffix string) string {
	return homePath(homeID, "/zones/"+strconv.FormatInt(zoneID, 10)+suffix)
}

// getJSON performs an authenticated GET and decodes the body into out.
// A 401 forces one token exchange and a single retry.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	err := c.get(ctx, op, path, query, out, false)

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		c.logger.Debug("access token rejected, refreshing", zap.String("op", op))
		err = c.get(ctx, op, path, query, out, true)
	}

	c.counters.APIRequest(op, err)
	return err
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any, forceToken bool) error {
	token, err := c.session.token(ctx, forceToken)
	if err != nil {
		return err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	var (
		status int
		body   []byte
	)
	_, err = c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
		if err != nil {
			return nil, err
		}
		status = resp.StatusCode
		// client errors other than throttling say nothing about upstream health
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			return nil, errUpstream
		}
		return nil, nil
	})
	if errors.Is(err, errUpstream) {
		return &StatusError{Op: op, StatusCode: status, Body: truncate(body)}
	}
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if status < 200 || status >= 300 {
		return &StatusError{Op: op, StatusCode: status, Body: truncate(body)}
	}
	if int64(len(body)) > c.maxBytes {
		return &TransportError{Op: op, Err: fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, c.maxBytes)}
	}

	return decode(op, body, out)
}

func decode(op string, body []byte, out any) error {
	err := json.Unmarshal(body, out)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return &DecodeError{Op: op, Path: typeErr.Field, Err: err}
	case errors.As(err, &syntaxErr):
		return &DecodeError{Op: op, Path: "offset " + strconv.FormatInt(syntaxErr.Offset, 10), Err: err}
	}
	return &DecodeError{Op: op, Err: err}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
