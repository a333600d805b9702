package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/drivers"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/logger"
)

// WriteOptions configures the write pipeline's success threshold (spec §9
// Open Question: one configurable threshold, applied identically to
// payload and device-root writes).
type WriteOptions struct {
	// MinSuccess is the minimum number of drivers that must both accept
	// the put and pass a verifying round-trip read.
	MinSuccess int
	// RetryAttempts bounds the number of put attempts per driver,
	// counting the first one.
	RetryAttempts int
}

// DefaultWriteOptions returns the spec §9 default: at least one driver
// must succeed and the written blob must be re-readable.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{MinSuccess: 1, RetryAttempts: 3}
}

// writeToDrivers implements the write pipeline of spec §4.4.3: dispatch to
// every named driver, accept a driver only once its put's returned URL
// round-trips a verifying read, and declare success once MinSuccess
// drivers have done so. Failing drivers are logged, not fatal, as long as
// the threshold is met.
func writeToDrivers(ctx context.Context, registry *drivers.Registry, driverNames []string, id string, data []byte, opts WriteOptions) ([]string, error) {
	expectedHash := cryptoutil.Sha256Hex(data)

	var urls []string
	succeeded := 0

	for _, name := range driverNames {
		d, ok := registry.Get(name)
		if !ok {
			logger.Warnf("write skipped unregistered driver %s", name)
			continue
		}

		driverURLs, err := putWithRetry(ctx, d, id, data, opts.RetryAttempts)
		if err != nil {
			logger.Warnf("driver %s put failed for %s: %v", name, id, err)
			continue
		}

		verified := false
		for _, u := range driverURLs {
			got, err := d.Get(ctx, u)
			if err != nil {
				logger.Warnf("driver %s verifying read failed for %s: %v", name, id, err)
				continue
			}
			if cryptoutil.Sha256Hex(got) == expectedHash {
				verified = true
				break
			}
			logger.Warnf("driver %s verifying read returned mismatched hash for %s", name, id)
		}
		if !verified {
			continue
		}

		urls = append(urls, driverURLs...)
		succeeded++
	}

	if succeeded < opts.MinSuccess {
		return nil, gatewayerr.NewUpstreamError("fewer than the required number of drivers accepted the write", nil)
	}
	return urls, nil
}

func putWithRetry(ctx context.Context, d drivers.Driver, id string, data []byte, attempts int) ([]string, error) {
	if attempts <= 0 {
		attempts = 1
	}
	operation := func() ([]string, error) {
		urls, err := d.Put(ctx, id, data)
		if err != nil {
			return nil, err
		}
		return urls, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
}

func deleteFromDrivers(ctx context.Context, registry *drivers.Registry, driverNames []string, id string) {
	for _, name := range driverNames {
		d, ok := registry.Get(name)
		if !ok {
			continue
		}
		if err := d.Delete(ctx, id); err != nil {
			logger.Warnf("driver %s delete failed for %s: %v", name, id, err)
		}
	}
}
