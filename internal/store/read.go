package store

import (
	"context"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/drivers"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/logger"
)

// readViaURLs implements the read pipeline of spec §4.4.2: reorder drivers
// so locally-backed ones are tried first, then attempt each URL in turn,
// accepting only a response whose hash matches. No single URL's failure
// (network error or hash mismatch) is fatal; the next one is tried. If
// every URL fails, the operation fails with ENODATA.
//
// Grounded on original_source/blockstack_client/gaia/file.py's
// get_file_data_from_header: it logs the fully-qualified file name purely
// for traceability even though the URL list already resolves the object,
// which this keeps as a debug line (see SPEC_FULL.md §C).
func readViaURLs(ctx context.Context, registry *drivers.Registry, fqName, expectedHashHex string, urls []string) ([]byte, error) {
	logger.Debugf("fetching %s via %d candidate url(s)", fqName, len(urls))

	ordered := registry.PrioritizeReadURLs(urls)
	for _, u := range ordered {
		driver, ok := registry.DriverForURL(u)
		if !ok {
			continue
		}
		data, err := driver.Get(ctx, u)
		if err != nil {
			logger.Warnf("driver %s failed to fetch %s: %v", driver.Name(), u, err)
			continue
		}
		if cryptoutil.Sha256Hex(data) != expectedHashHex {
			logger.Warnf("driver %s returned data with mismatched hash for %s", driver.Name(), u)
			continue
		}
		return data, nil
	}

	return nil, gatewayerr.NewENODATA("failed to fetch "+fqName+" from any driver", nil)
}
