package output

import "context"

// ObjectStorage defines the secondary port for publishing finished tile
// databases to object storage.
type ObjectStorage interface {
	// Upload stores the local file under the given key.
	Upload(ctx context.Context, localPath, key string) error

	// Exists checks if an object exists under the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageType represents the type of storage backend.
type StorageType string

// Supported publish backends. The config value "none" disables
// publishing and never reaches a backend.
const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
)
