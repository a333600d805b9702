package store

import "fmt"

// FileFQID returns the fully-qualified id under which a file payload is
// stored: "{device_id}:{datastore_id}/{file_name}" (spec §3).
func FileFQID(deviceID, datastoreID, fileName string) string {
	return fmt.Sprintf("%s:%s/%s", deviceID, datastoreID, fileName)
}

// DeviceRootFQID returns the fully-qualified id under which a device's
// root page is stored.
func DeviceRootFQID(deviceID, datastoreID string) string {
	return fmt.Sprintf("%s:%s/_root", deviceID, datastoreID)
}

// DatastoreRecordFQID returns the fully-qualified id under which a
// datastore's own record is stored. It carries no device prefix since the
// record is not device-scoped.
func DatastoreRecordFQID(datastoreID string) string {
	return fmt.Sprintf("_datastore:%s", datastoreID)
}
