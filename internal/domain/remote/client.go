// Package remote starts abilities on other devices over HTTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

var (
	ErrUnknownDevice = errors.New("unknown remote device")
	ErrRejected      = errors.New("remote device rejected start")
)

// StartPath is where a device accepts start requests
const StartPath = "/abilities/start"

// Config configures the client
type Config struct {
	// Devices maps device IDs to base URLs
	Devices map[string]string
	Timeout time.Duration
	Retries int
}

// StartRequest is the body sent to the remote device
type StartRequest struct {
	BundleName   string `json:"bundle_name"`
	Data         []byte `json:"data,omitempty"`
	CallerBundle string `json:"caller_bundle,omitempty"`
}

// Client sends start requests to remote devices
type Client struct {
	resty    *resty.Client
	devices  map[string]string
	breakers *resilience.Group
	tracer   *tracing.Tracer
	logger   *logging.Logger
}

// NewClient creates a client for the configured devices
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 50 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil

	r := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "abilityms-remote/1.0")

	devices := make(map[string]string, len(cfg.Devices))
	for id, url := range cfg.Devices {
		devices[id] = strings.TrimRight(url, "/")
	}

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(device string, from, to resilience.State) {
			logger.Warn("Remote device breaker changed",
				zap.String("device", device),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Client{
		resty:    r,
		devices:  devices,
		breakers: breakers,
		logger:   logger,
	}
}

// WithTracer traces outgoing requests
func (c *Client) WithTracer(tracer *tracing.Tracer) *Client {
	c.tracer = tracer
	return c
}

// Devices returns the known device IDs
func (c *Client) Devices() []string {
	out := make([]string, 0, len(c.devices))
	for id := range c.devices {
		out = append(out, id)
	}
	return out
}

// BreakerStates reports the breaker of every device contacted so far
func (c *Client) BreakerStates() map[string]resilience.State {
	return c.breakers.States()
}

// StartRemoteAbility asks intent's device to start the ability on behalf of caller
func (c *Client) StartRemoteAbility(ctx context.Context, intent *types.Intent, caller string) error {
	base, ok := c.devices[intent.DeviceID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, intent.DeviceID)
	}

	if c.tracer != nil {
		var span *tracing.Span
		span, ctx = c.tracer.Start(ctx, "remote.start")
		span.SetTag("device", intent.DeviceID)
		defer c.tracer.Finish(span)
	}

	body := StartRequest{
		BundleName:   intent.BundleName,
		Data:         intent.Data,
		CallerBundle: caller,
	}

	return c.breakers.Get(intent.DeviceID).Do(func() error {
		req := c.resty.R().SetContext(ctx).SetBody(body)
		tracing.Inject(ctx, func(k, v string) { req.SetHeader(k, v) })

		resp, err := req.Post(base + StartPath)
		if err != nil {
			return fmt.Errorf("post to %s: %w", intent.DeviceID, err)
		}
		if resp.IsError() {
			c.logger.Warn("Remote start rejected",
				zap.String("device", intent.DeviceID),
				zap.Int("status", resp.StatusCode()),
				zap.String("body", resp.String()),
			)
			return fmt.Errorf("%w: %s answered %d", ErrRejected, intent.DeviceID, resp.StatusCode())
		}
		return nil
	})
}
