package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

const DefaultConnectTimeout = 5 * time.Second

// Config selects the server either by URL (redis:// or valkey://) or by address.
type Config struct {
	URL            string
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

// Client wraps valkey-go with key prefixing and the counters used by the
// rate limiter.
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

func clientOption(cfg Config) (valkeylib.ClientOption, error) {
	if cfg.URL != "" {
		opts, err := valkeylib.ParseURL(cfg.URL)
		if err != nil {
			return opts, fmt.Errorf("invalid valkey url: %w", err)
		}
		return opts, nil
	}
	if cfg.Address == "" {
		return valkeylib.ClientOption{}, fmt.Errorf("valkey address is empty")
	}
	return valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	}, nil
}

// NewClient connects and pings. The caller owns Close.
func NewClient(cfg Config) (*Client, error) {
	opts, err := clientOption(cfg)
	if err != nil {
		return nil, err
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Client{inner: inner, keyPrefix: prefix}, nil
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key joins parts with ':' behind the configured prefix.
// Key("rate", "abc") -> "relay:rate:abc"
func (c *Client) Key(parts ...string) string {
	return c.keyPrefix + strings.Join(parts, ":")
}

func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

// IncrWindow increments key and starts its expiry on the first hit of a
// window. It returns the new count and the time left before the key expires.
func (c *Client) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.inner.Do(ctx, c.inner.B().Incr().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		cmd := c.inner.B().Pexpire().Key(key).Milliseconds(window.Milliseconds()).Build()
		if err := c.inner.Do(ctx, cmd).Error(); err != nil {
			return count, 0, fmt.Errorf("pexpire %s: %w", key, err)
		}
		return count, window, nil
	}

	pttl, err := c.inner.Do(ctx, c.inner.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return count, 0, fmt.Errorf("pttl %s: %w", key, err)
	}
	if pttl < 0 {
		// the key lost its expiry (crash between INCR and PEXPIRE); restart the window
		cmd := c.inner.B().Pexpire().Key(key).Milliseconds(window.Milliseconds()).Build()
		if err := c.inner.Do(ctx, cmd).Error(); err != nil {
			return count, 0, fmt.Errorf("pexpire %s: %w", key, err)
		}
		pttl = window.Milliseconds()
	}
	return count, time.Duration(pttl) * time.Millisecond, nil
}

// IsNil reports whether err is a Valkey nil reply.
func IsNil(err error) bool {
	return valkeylib.IsValkeyNil(err)
}
