// Package storage implements the media host collaborator: binary assets are
// pushed to an S3-compatible backend and referenced by public URL.
package storage

import "context"

// Uploader pushes a local file to the media host and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}
