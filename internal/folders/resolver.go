// Package folders resolves slash-delimited logical paths to remote folder
// handles, lazily creating missing segments. Resolution is idempotent
// (find-or-create) and results are cached for a bounded window so repeated
// uploads to the same logical folder skip the walk.
package folders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uploadrelay/uploadrelay/internal/graph"
)

// rootItemID addresses the drive root in Graph item URLs.
const rootItemID = "root"

// API is the subset of the Graph client the resolver needs.
// Defined at the consumer per Go convention.
type API interface {
	ListChildren(ctx context.Context, driveID, parentID string) ([]graph.Item, error)
	CreateFolder(ctx context.Context, driveID, parentID, name string) (*graph.Item, error)
}

// Handle references a remote folder, scoped to a drive.
type Handle struct {
	ID      string
	DriveID string
}

// FolderError reports a failed list or create call partway through a path
// walk, naming the segment and the underlying HTTP status. Segments already
// created before the failure are left in place — they are found on retry.
type FolderError struct {
	Segment string
	Status  int
	Err     error
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("folders: resolving segment %q: HTTP %d: %v", e.Segment, e.Status, e.Err)
}

func (e *FolderError) Unwrap() error {
	return e.Err
}

// Resolver walks or creates each segment of a logical path and caches the
// resulting handle per (drive, path) for the configured TTL.
type Resolver struct {
	api    API
	cache  *pathCache
	logger *slog.Logger
}

// NewResolver creates a Resolver with the given cache TTL. now may be nil
// (defaults to time.Now); tests inject a fake clock.
func NewResolver(api API, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		api:    api,
		cache:  newPathCache(ttl, now),
		logger: logger,
	}
}

// splitPath splits a logical path on "/", discarding empty segments so
// "/A//B/" resolves identically to "A/B".
func splitPath(path string) []string {
	parts := strings.Split(path, "/")

	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}

	return segments
}

// ResolveOrCreate resolves the logical path to a folder handle, creating
// missing segments along the way. Segment name comparison is exact and
// case-sensitive — no normalization.
//
// Concurrent first-time resolution of the same new path is not locked: the
// provider's rename-on-conflict behavior means a race may create two
// differently-named folders, which a later resolution will not merge.
func (r *Resolver) ResolveOrCreate(ctx context.Context, driveID, path string) (Handle, error) {
	segments := splitPath(path)
	key := cacheKey(driveID, segments)

	if h, ok := r.cache.get(key); ok {
		r.logger.Debug("path cache hit",
			slog.String("drive_id", driveID),
			slog.String("path", key),
		)

		return h, nil
	}

	current := Handle{ID: rootItemID, DriveID: driveID}

	for _, segment := range segments {
		next, err := r.resolveSegment(ctx, current, segment)
		if err != nil {
			return Handle{}, err
		}

		current = next
	}

	r.cache.put(key, current)

	r.logger.Info("resolved folder path",
		slog.String("drive_id", driveID),
		slog.String("path", key),
		slog.String("folder_id", current.ID),
	)

	return current, nil
}

// resolveSegment finds a child folder with the exact segment name under the
// current handle, creating it when absent.
func (r *Resolver) resolveSegment(ctx context.Context, parent Handle, segment string) (Handle, error) {
	children, err := r.api.ListChildren(ctx, parent.DriveID, parent.ID)
	if err != nil {
		return Handle{}, &FolderError{Segment: segment, Status: graph.StatusOf(err), Err: err}
	}

	for i := range children {
		if children[i].IsFolder && children[i].Name == segment {
			return Handle{ID: children[i].ID, DriveID: parent.DriveID}, nil
		}
	}

	created, err := r.api.CreateFolder(ctx, parent.DriveID, parent.ID, segment)
	if err != nil {
		return Handle{}, &FolderError{Segment: segment, Status: graph.StatusOf(err), Err: err}
	}

	r.logger.Info("created folder segment",
		slog.String("drive_id", parent.DriveID),
		slog.String("name", segment),
		slog.String("folder_id", created.ID),
	)

	return Handle{ID: created.ID, DriveID: parent.DriveID}, nil
}

// cacheKey joins the cleaned segments so equivalent spellings of a path
// share one cache entry.
func cacheKey(driveID string, segments []string) string {
	return driveID + ":" + strings.Join(segments, "/")
}
