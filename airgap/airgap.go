package airgap

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/tokenized/logger"
)

// The private key must never be loaded into a network-reachable process
// context. Signing is bracketed by WaitOffline and WaitOnline: connectivity
// verified off and the removable key source present for the whole signing
// window, then connectivity back on and the key source removed before any
// network stage runs.

const DefaultInterval = 10 * time.Second

// Probe reports whether the host currently has network connectivity.
type Probe func(ctx context.Context) bool

// HTTPProbe returns a probe that considers the host online when the sentinel
// URL responds at all.
func HTTPProbe(url string) Probe {
	var transport = &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 5 * time.Second,
		}).Dial,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	var client = &http.Client{
		Timeout:   time.Second * 10,
		Transport: transport,
	}

	return func(ctx context.Context) bool {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}

		response, err := client.Do(request)
		if err != nil {
			return false
		}
		response.Body.Close()
		return true
	}
}

// Checker enforces the signing preconditions. Both waits block with a fixed
// polling interval until the condition holds or the context is cancelled.
type Checker interface {
	// WaitOffline blocks until connectivity is verified absent and the key
	// source is present.
	WaitOffline(ctx context.Context) error

	// WaitOnline blocks until connectivity is back and the key source has
	// been removed.
	WaitOnline(ctx context.Context) error
}

// PollingChecker polls a connectivity probe and the key source path.
type PollingChecker struct {
	Probe    Probe
	KeyPath  string
	Interval time.Duration

	// Skip disables both checks. Less secure; read the documentation before
	// enabling it.
	Skip bool
}

func NewPollingChecker(probe Probe, keyPath string, interval time.Duration) *PollingChecker {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &PollingChecker{
		Probe:    probe,
		KeyPath:  keyPath,
		Interval: interval,
	}
}

func (c *PollingChecker) WaitOffline(ctx context.Context) error {
	if c.Skip {
		logger.Warn(ctx, "Configured to skip the connectivity check while the key source is attached")
		return nil
	}

	for {
		if !c.Probe(ctx) && keySourcePresent(c.KeyPath) {
			return nil
		}

		logger.Info(ctx, "Turn off networking and attach the key source to continue")
		if err := wait(ctx, c.Interval); err != nil {
			return err
		}
	}
}

func (c *PollingChecker) WaitOnline(ctx context.Context) error {
	if c.Skip {
		logger.Warn(ctx, "Configured to skip the connectivity check while the key source is attached")
		return nil
	}

	for {
		if c.Probe(ctx) && !keySourcePresent(c.KeyPath) {
			return nil
		}

		logger.Info(ctx, "Turn on networking and remove the key source to continue")
		if err := wait(ctx, c.Interval); err != nil {
			return err
		}
	}
}

func keySourcePresent(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func wait(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
