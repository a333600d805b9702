package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/drivers"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/logger"
)

// Store is the datastore core (spec §4.4). It holds no durable state of
// its own: every record is reconstructed per request from the driver
// registry (spec §5). The only in-memory state is the per-device-root
// write lock map and the write-ahead queue for asynchronous writes.
type Store struct {
	registry *drivers.Registry
	opts     WriteOptions

	deviceLocksMu sync.Mutex
	deviceLocks   map[string]*sync.Mutex

	wal *WAL
}

// NewStore constructs a Store backed by registry.
func NewStore(registry *drivers.Registry, opts WriteOptions) *Store {
	s := &Store{
		registry:    registry,
		opts:        opts,
		deviceLocks: make(map[string]*sync.Mutex),
	}
	s.wal = newWAL(s)
	return s
}

// deviceLock returns the single mutex that serializes writes to one
// (datastore, device) root page (spec §4.4.5).
func (s *Store) deviceLock(datastoreID, deviceID string) *sync.Mutex {
	key := datastoreID + "/" + deviceID
	s.deviceLocksMu.Lock()
	defer s.deviceLocksMu.Unlock()
	lock, ok := s.deviceLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.deviceLocks[key] = lock
	}
	return lock
}

// CreateDatastore validates and persists a new datastore record (spec
// §4.4.1 Create). It writes no device root page: a datastore has no
// root pages until a device writes one through WriteDeviceRoot.
func (s *Store) CreateDatastore(ctx context.Context, ds *Datastore) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if ds.RootUUID == "" {
		ds.RootUUID = uuid.NewString()
	}

	existing, err := s.readDatastoreRecordRaw(ctx, ds.ID)
	if err == nil && existing != nil {
		return gatewayerr.NewEEXIST("datastore already exists", nil)
	}

	body, err := json.Marshal(ds)
	if err != nil {
		return gatewayerr.NewInternalError("failed to serialize datastore record", err)
	}

	if _, err := writeToDrivers(ctx, s.registry, ds.Drivers, DatastoreRecordFQID(ds.ID), body, s.opts); err != nil {
		return gatewayerr.NewUpstreamError("failed to write datastore record", err)
	}
	return nil
}

func (s *Store) readDatastoreRecordRaw(ctx context.Context, datastoreID string) ([]byte, error) {
	id := DatastoreRecordFQID(datastoreID)
	for _, name := range s.registry.Names() {
		d, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		data, err := d.Get(ctx, d.URLFor(id))
		if err == nil {
			return data, nil
		}
	}
	return nil, gatewayerr.NewENOENT("datastore record not found", nil)
}

// ReadDatastore fetches and parses the datastore record for datastoreID
// (spec §4.4.1 "Read datastore record").
func (s *Store) ReadDatastore(ctx context.Context, datastoreID string) (*Datastore, error) {
	raw, err := s.readDatastoreRecordRaw(ctx, datastoreID)
	if err != nil {
		return nil, err
	}
	var ds Datastore
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, gatewayerr.NewInternalError("corrupt datastore record", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// ReadDeviceRoot fetches and verifies a single device's current root page
// (spec §4.4.1 "Read device root").
func (s *Store) ReadDeviceRoot(ctx context.Context, ds *Datastore, deviceID string, pub *cryptoutil.PublicKey) (*DeviceRootPage, error) {
	id := DeviceRootFQID(deviceID, ds.ID)
	for _, name := range ds.Drivers {
		d, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		data, err := d.Get(ctx, d.URLFor(id))
		if err != nil {
			continue
		}
		var page DeviceRootPage
		if err := json.Unmarshal(data, &page); err != nil {
			continue
		}
		if !page.Verify(pub) {
			return nil, gatewayerr.NewEINVAL("device root page signature invalid", nil)
		}
		return &page, nil
	}
	return nil, gatewayerr.NewENOENT("no device root page for "+deviceID, nil)
}

// DevicePubKeys maps a device id to its current application public key,
// supplied by the caller (derived from the session or an app_public_keys
// argument; spec §4.4.1).
type DevicePubKeys map[string]*cryptoutil.PublicKey

// ReadMergedRoot fetches every device's current root page in parallel,
// verifies each, and returns the merged listing (spec §4.4.1 "Read merged
// root", §4.4.4).
func (s *Store) ReadMergedRoot(ctx context.Context, ds *Datastore, pubKeys DevicePubKeys) (*MergedRoot, error) {
	type result struct {
		dp DevicePage
	}

	resultsCh := make(chan result, len(ds.DeviceIDs))
	var wg sync.WaitGroup
	for _, deviceID := range ds.DeviceIDs {
		deviceID := deviceID
		pub, ok := pubKeys[deviceID]
		if !ok {
			resultsCh <- result{dp: DevicePage{DeviceID: deviceID}}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := s.ReadDeviceRoot(ctx, ds, deviceID, pub)
			if err != nil {
				logger.Debugf("device root unavailable for %s: %v", deviceID, err)
				resultsCh <- result{dp: DevicePage{DeviceID: deviceID, PubKey: pub}}
				return
			}
			resultsCh <- result{dp: DevicePage{DeviceID: deviceID, Page: page, PubKey: pub}}
		}()
	}
	wg.Wait()
	close(resultsCh)

	pages := make([]DevicePage, 0, len(ds.DeviceIDs))
	for r := range resultsCh {
		pages = append(pages, r.dp)
	}
	// deterministic ordering for merge's device-id tie-break to be
	// independent of goroutine completion order
	sort.Slice(pages, func(i, j int) bool { return pages[i].DeviceID < pages[j].DeviceID })

	return MergeRootDirectory(pages)
}

// ReadFileHeader looks up name in the merged root directory (spec §4.4.1
// "Read file header").
func (s *Store) ReadFileHeader(ctx context.Context, ds *Datastore, pubKeys DevicePubKeys, name string) (*FileHeader, error) {
	merged, err := s.ReadMergedRoot(ctx, ds, pubKeys)
	if err != nil {
		return nil, err
	}
	header, ok := merged.Files[name]
	if !ok {
		return nil, gatewayerr.NewENOENT("no such file: "+name, nil)
	}
	return &header, nil
}

// ReadFile fetches a file's payload bytes and verifies hash(bytes) ==
// header.data_hash (spec §4.4.1 "Read file", §4.4.2, §8 invariant).
func (s *Store) ReadFile(ctx context.Context, ds *Datastore, header *FileHeader) ([]byte, error) {
	fqName := ds.ID + "/" + header.Name
	return readViaURLs(ctx, s.registry, fqName, header.DataHash, header.URLs)
}

// WriteFile replicates a file payload across ds.Drivers and returns the
// produced URL set (spec §4.4.1 "Write file", §4.4.3).
func (s *Store) WriteFile(ctx context.Context, ds *Datastore, deviceID, name string, payload []byte) ([]string, error) {
	id := FileFQID(deviceID, ds.ID, name)
	urls, err := writeToDrivers(ctx, s.registry, ds.Drivers, id, payload, s.opts)
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// WriteDeviceRoot verifies and replicates a device's new signed root page
// (spec §4.4.1 "Replace device root", §4.4.3 sync/async modes, §4.4.5
// single-writer-per-device-root serialization).
func (s *Store) WriteDeviceRoot(ctx context.Context, ds *Datastore, page *DeviceRootPage, pub *cryptoutil.PublicKey, sync bool) error {
	if !page.Verify(pub) {
		return gatewayerr.NewEINVAL("device root page signature invalid", nil)
	}

	lock := s.deviceLock(ds.ID, page.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	body, err := json.Marshal(page)
	if err != nil {
		return gatewayerr.NewInternalError("failed to serialize device root page", err)
	}
	id := DeviceRootFQID(page.DeviceID, ds.ID)

	if sync {
		_, err := writeToDrivers(ctx, s.registry, ds.Drivers, id, body, s.opts)
		return err
	}

	s.wal.enqueue(ds, id, body)
	return nil
}

// DeleteFile applies a verified tombstone by persisting the caller's
// already-resigned device root page (spec §4.4.1 "Delete file"). The
// gateway never holds a device's application key, so it cannot append
// a tombstone to the stored page and re-sign it itself (doing so would
// silently invalidate Signature against the page's new Tombstones,
// see signingBytes); the client must sign the post-tombstone page and
// hand it to resignedPage, and this method only verifies and persists
// it, the same way WriteDeviceRoot does.
func (s *Store) DeleteFile(ctx context.Context, ds *Datastore, deviceID string, pub *cryptoutil.PublicKey, tomb Tombstone, resignedPage *DeviceRootPage) error {
	if !tomb.Verify(pub) {
		return gatewayerr.NewEPERM("tombstone signature invalid", nil)
	}
	if resignedPage.DeviceID != deviceID {
		return gatewayerr.NewEINVAL("resigned page device id does not match the tombstone's device", nil)
	}
	applied := false
	for _, t := range resignedPage.Tombstones {
		if t.Text == tomb.Text {
			applied = true
			break
		}
	}
	if !applied {
		return gatewayerr.NewEINVAL("resigned device root page does not include the tombstone being applied", nil)
	}

	// idempotent: applying the same tombstone twice leaves the stored
	// page unchanged after the first application (spec §8 law).
	if existing, err := s.ReadDeviceRoot(ctx, ds, deviceID, pub); err == nil {
		for _, t := range existing.Tombstones {
			if t.Text == tomb.Text {
				return nil
			}
		}
	} else if !gatewayerr.IsNotFound(err) {
		return err
	}

	return s.WriteDeviceRoot(ctx, ds, resignedPage, pub, true)
}

// DeleteDatastore removes the datastore record and every device root page
// through each driver, once every tombstone in tombstones has been
// verified against one of pubKeys and deviceIDs is fully covered (spec
// §4.4.1 "Delete datastore").
func (s *Store) DeleteDatastore(ctx context.Context, ds *Datastore, datastoreTombstones, rootTombstones []Tombstone, pubKeys []*cryptoutil.PublicKey, deviceIDs []string) error {
	covered := make(map[string]bool)
	allVerified := func(tombs []Tombstone) bool {
		for _, t := range tombs {
			verified := false
			for _, pub := range pubKeys {
				if t.Verify(pub) {
					verified = true
					fqID, _, err := ParseTombstoneText(t.Text)
					if err == nil {
						covered[fqID] = true
					}
					break
				}
			}
			if !verified {
				return false
			}
		}
		return true
	}

	if !allVerified(datastoreTombstones) || !allVerified(rootTombstones) {
		return gatewayerr.NewEPERM("not every tombstone verified under a session device key", nil)
	}

	for _, deviceID := range deviceIDs {
		if !covered[DeviceRootFQID(deviceID, ds.ID)] {
			return gatewayerr.NewEPERM("device id "+deviceID+" not covered by any tombstone", nil)
		}
	}

	deleteFromDrivers(ctx, s.registry, ds.Drivers, DatastoreRecordFQID(ds.ID))
	for _, deviceID := range ds.DeviceIDs {
		deleteFromDrivers(ctx, s.registry, ds.Drivers, DeviceRootFQID(deviceID, ds.ID))
	}
	return nil
}
