// Package remote is the synchronization adapter between a local
// repository and the content portal. The portal is a key-document
// store: it has no history of its own, only the current state of each
// item.
package remote

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"

	"github.com/gitmap-dev/gitmap/webmap"
)

// Remote error taxonomy. The subtype is preserved so the surrounding
// tool can give actionable guidance; remote failures are never
// swallowed and never retried here.
var (
	ErrItemNotFound     = errors.New("remote item not found")
	ErrUnauthorized     = errors.New("remote authentication failed")
	ErrPermissionDenied = errors.New("remote permission denied")
	ErrRemoteConflict   = errors.New("remote item changed since last known state")
)

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "remote"})

// ItemInfo is the portal metadata for a web map item.
type ItemInfo struct {
	ID       string
	Title    string
	Owner    string
	Tags     []string
	// Modified is the portal's last-modified timestamp in epoch
	// milliseconds, zero when unknown.
	Modified int64
}

// Portal is the narrow contract the versioning core needs from the
// remote service.
type Portal interface {
	// FetchItem returns the metadata of an item.
	FetchItem(ctx context.Context, itemID string) (*ItemInfo, error)
	// FetchDocument returns the current web map document of an item.
	FetchDocument(ctx context.Context, itemID string) (*webmap.Document, error)
	// WriteDocument writes a document to the portal. An empty itemID
	// creates a new item described by info and returns its id;
	// otherwise the existing item is updated. When info.Modified is
	// non-zero and the remote item changed since then, the write
	// fails with ErrRemoteConflict and the item is left untouched.
	WriteDocument(ctx context.Context, itemID string, doc *webmap.Document, info ItemInfo) (string, error)
	// SearchDocuments finds web map items matching the query. Used by
	// setup tooling, not by the versioning core proper.
	SearchDocuments(ctx context.Context, query string) ([]ItemInfo, error)
}
