// Package blob stores fetched page content in object storage, keyed so one
// run's pages group by hostname.
package blob

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrObjectNotFound is returned when a content object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// hashKeyLength is how much of the content hash goes into the object key.
const hashKeyLength = 16

// Store persists and retrieves page content blobs.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// invalidObjectNameChars matches characters that are problematic in MinIO/S3
// object names: control chars, \, ?, *, |, <, >, :, "
var invalidObjectNameChars = regexp.MustCompile(`[\\?*|<>:"\x00-\x1F]`)

// sanitizeHostname makes a hostname safe for use as an object key segment.
func sanitizeHostname(hostname string) string {
	normalized := invalidObjectNameChars.ReplaceAllString(hostname, "_")
	normalized = strings.ReplaceAll(normalized, "/", "_")
	normalized = strings.Trim(normalized, "_")

	if normalized == "" {
		return "unknown"
	}

	return normalized
}

// ObjectKey builds the object key for one fetched page:
// {runId}/{hostname}/{contentHash prefix}.html
func ObjectKey(runID, hostname, contentHash string) string {
	hash := contentHash
	if len(hash) > hashKeyLength {
		hash = hash[:hashKeyLength]
	}
	if hash == "" {
		hash = "empty"
	}

	return fmt.Sprintf("%s/%s/%s.html", runID, sanitizeHostname(hostname), hash)
}
