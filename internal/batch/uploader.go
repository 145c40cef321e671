// Package batch uploads a set of attachments into one remote folder with
// bounded parallelism and independent per-item outcomes.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/uploadrelay/uploadrelay/internal/attachment"
	"github.com/uploadrelay/uploadrelay/internal/folders"
	"github.com/uploadrelay/uploadrelay/internal/graph"
)

// defaultWorkers bounds parallel uploads when the caller does not configure
// a limit.
const defaultWorkers = 4

// ContentPutter is the subset of the Graph client the uploader needs.
type ContentPutter interface {
	UploadContent(ctx context.Context, driveID, parentID, name string, r io.Reader, size int64) (*graph.Item, error)
}

// Result is the outcome for one attachment. Exactly one of URL or Err is
// meaningful: URL on success, Err on failure.
type Result struct {
	Filename string
	URL      string
	Err      error
}

// Uploader pushes attachments into a resolved folder. One failure never
// aborts the batch; retry is a caller concern.
type Uploader struct {
	api     ContentPutter
	workers int
	logger  *slog.Logger
}

// NewUploader creates an Uploader with the given parallelism bound.
// workers <= 0 selects the default.
func NewUploader(api ContentPutter, workers int, logger *slog.Logger) *Uploader {
	if workers <= 0 {
		workers = defaultWorkers
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{api: api, workers: workers, logger: logger}
}

// UploadAll uploads every attachment into the folder, returning one Result
// per attachment in input order. Attachments share no mutable state once the
// folder handle is resolved, so they upload in parallel up to the worker
// bound. No ordering is required from the remote store.
func (u *Uploader) UploadAll(ctx context.Context, folder folders.Handle, atts []attachment.Attachment) []Result {
	results := make([]Result, len(atts))

	if len(atts) == 0 {
		return results
	}

	u.logger.Info("starting upload batch",
		slog.String("folder_id", folder.ID),
		slog.Int("count", len(atts)),
		slog.Int("workers", u.workers),
	)

	g := new(errgroup.Group)
	g.SetLimit(u.workers)

	for i := range atts {
		g.Go(func() error {
			results[i] = u.uploadOne(ctx, folder, atts[i])
			return nil
		})
	}

	// Workers only record per-item outcomes, never return errors.
	_ = g.Wait()

	ok, failed := Tally(results)
	u.logger.Info("upload batch complete",
		slog.String("folder_id", folder.ID),
		slog.Int("uploaded", ok),
		slog.Int("failed", failed),
	)

	return results
}

// uploadOne pushes a single attachment and records its outcome.
func (u *Uploader) uploadOne(ctx context.Context, folder folders.Handle, att attachment.Attachment) Result {
	item, err := u.api.UploadContent(ctx, folder.DriveID, folder.ID, att.Name,
		bytes.NewReader(att.Data), int64(len(att.Data)))
	if err != nil {
		u.logger.Warn("attachment upload failed",
			slog.String("filename", att.Name),
			slog.Int("status", graph.StatusOf(err)),
			slog.String("error", err.Error()),
		)

		return Result{
			Filename: att.Name,
			Err:      fmt.Errorf("uploading %q: %w", att.Name, err),
		}
	}

	return Result{Filename: att.Name, URL: item.WebURL}
}

// Tally counts successes and failures for "N of M uploaded" reporting.
func Tally(results []Result) (uploaded, failed int) {
	for i := range results {
		if results[i].Err != nil {
			failed++
		} else {
			uploaded++
		}
	}

	return uploaded, failed
}
