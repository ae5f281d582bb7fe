package camunda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the zeebe gateway client with connect-time verification and
// retried message publication.
type Client struct {
	zbc   zbc.Client
	cfg   ClientConfig
	retry RetryConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	Retry                  *RetryConfig
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func defaultRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

// NewClientWithConfig dials the gateway and asks for the topology once, so a
// broker that is down fails here rather than on the first job.
func NewClientWithConfig(cfg *ClientConfig) (*Client, error) {
	c := &Client{cfg: *cfg, retry: defaultRetry()}
	if cfg.Retry != nil {
		c.retry = *cfg.Retry
	}
	if c.cfg.ConnectionTimeout <= 0 {
		c.cfg.ConnectionTimeout = 10 * time.Second
	}
	if c.cfg.RequestTimeout <= 0 {
		c.cfg.RequestTimeout = 30 * time.Second
	}

	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}
	c.zbc = zc

	if err := c.HealthCheck(context.Background()); err != nil {
		zc.Close()
		return nil, fmt.Errorf("zeebe gateway %s unreachable: %w", cfg.GatewayAddress, err)
	}
	return c, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.zbc
}

func (c *Client) Close() error {
	return c.zbc.Close()
}

// HealthCheck requests the cluster topology within the connection timeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	if _, err := c.zbc.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe topology request failed: %w", err)
	}
	return nil
}

// PublishMessage publishes a message correlated by correlationKey. Broker
// back-pressure and unavailability are retried with backoff.
func (c *Client) PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, vars map[string]interface{}) error {
	return withRetry(ctx, c.retry, "publish "+name, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		cmd, err := c.zbc.NewPublishMessageCommand().
			MessageName(name).
			CorrelationKey(correlationKey).
			TimeToLive(ttl).
			VariablesFromMap(vars)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
}

func withRetry(ctx context.Context, rc RetryConfig, op string, fn func(context.Context) error) error {
	delay := rc.BaseDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !transient(err) || attempt > rc.MaxRetries {
			return fmt.Errorf("zeebe %s failed after %d attempt(s): %w", op, attempt, err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("zeebe %s cancelled after %d attempt(s): %w", op, attempt, ctx.Err())
		}
		if delay *= 2; delay > rc.MaxDelay {
			delay = rc.MaxDelay
		}
	}
}

// transient reports whether the gateway is likely to accept the same command
// later.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return true
	}
	return false
}
