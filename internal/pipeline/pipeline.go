// Package pipeline runs the end-to-end status update: resolve the recipient,
// prepare and upload the images, then send the notification email.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/uploadrelay/uploadrelay/internal/attachment"
	"github.com/uploadrelay/uploadrelay/internal/batch"
	"github.com/uploadrelay/uploadrelay/internal/folders"
	"github.com/uploadrelay/uploadrelay/internal/imaging"
	"github.com/uploadrelay/uploadrelay/internal/notify"
)

// Statuses an order can be moved to.
const (
	StatusProduction   = "PRODUCTION"
	StatusShipped      = "SHIPPED"
	StatusPickup       = "PICKUP"
	StatusInstallation = "INSTALLATION"
)

var knownStatuses = map[string]bool{
	StatusProduction:   true,
	StatusShipped:      true,
	StatusPickup:       true,
	StatusInstallation: true,
}

// Statuses returns the accepted status values in display order.
func Statuses() []string {
	return []string{StatusProduction, StatusShipped, StatusPickup, StatusInstallation}
}

var (
	// ErrUnknownStatus means the requested status is not one of the accepted values.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrNoRecipient means the project ID has no email address on file.
	ErrNoRecipient = errors.New("no recipient on file")
	// ErrNoFiles means the request carried nothing to upload.
	ErrNoFiles = errors.New("no files to upload")
)

// RecipientLookup resolves a project ID to an email address; empty when absent.
type RecipientLookup interface {
	Lookup(ctx context.Context, projectID string) (string, error)
}

// FolderResolver maps a folder path to a drive location, creating it if needed.
type FolderResolver interface {
	ResolveOrCreate(ctx context.Context, driveID, folderPath string) (folders.Handle, error)
}

// Uploader pushes a batch of files into a resolved folder.
type Uploader interface {
	UploadAll(ctx context.Context, folder folders.Handle, atts []attachment.Attachment) []batch.Result
}

// Mailer delivers the notification email.
type Mailer interface {
	Send(ctx context.Context, n notify.Notice) error
}

// Poster publishes a one-line summary to a team channel.
type Poster interface {
	Post(ctx context.Context, text string) error
}

// Options configures a Pipeline.
type Options struct {
	// DriveID is the drive holding the customer folder tree.
	DriveID string
	// CustomerRoot is the folder all order folders live under.
	CustomerRoot string
	// MaxImageBytes triggers image recompression above this size; 0 disables.
	MaxImageBytes int
	// SkipUpload and SkipEmail bypass the respective stages.
	SkipUpload bool
	SkipEmail  bool
}

// Pipeline wires the stages together. Construct with New.
type Pipeline struct {
	store    RecipientLookup
	resolver FolderResolver
	uploader Uploader
	mailer   Mailer
	poster   Poster
	opts     Options
	logger   *slog.Logger

	newID func() string
}

// New builds a Pipeline. poster may be nil when no channel is configured.
func New(store RecipientLookup, resolver FolderResolver, uploader Uploader,
	mailer Mailer, poster Poster, opts Options, logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		store:    store,
		resolver: resolver,
		uploader: uploader,
		mailer:   mailer,
		poster:   poster,
		opts:     opts,
		logger:   logger,
		newID:    func() string { return uuid.NewString() },
	}
}

// Request is one status update: an order, its new status, and image paths to
// read from local disk.
type Request struct {
	ProjectID string
	Status    string
	Files     []string
}

// Summary reports what the run accomplished.
type Summary struct {
	ProjectID  string
	Status     string
	Recipient  string
	FolderPath string
	Uploaded   int
	Failed     int
	Results    []batch.Result
	EmailSent  bool
	EmailErr   error
}

// Run executes the update. Uploads that already happened are never retracted
// by a later email failure; the failure is reported in the Summary instead.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Summary, error) {
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if !knownStatuses[status] {
		return nil, fmt.Errorf("%w: %q (want one of %s)",
			ErrUnknownStatus, req.Status, strings.Join(Statuses(), ", "))
	}

	projectID := strings.TrimSpace(req.ProjectID)

	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}

	recipient, err := p.store.Lookup(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("looking up recipient: %w", err)
	}

	if recipient == "" && !p.opts.SkipEmail {
		return nil, fmt.Errorf("%w: %s", ErrNoRecipient, projectID)
	}

	atts, err := p.prepareAttachments(status, req.Files)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		ProjectID:  projectID,
		Status:     status,
		Recipient:  recipient,
		FolderPath: path.Join(p.opts.CustomerRoot, status, projectID),
	}

	if !p.opts.SkipUpload {
		folder, err := p.resolver.ResolveOrCreate(ctx, p.opts.DriveID, summary.FolderPath)
		if err != nil {
			return nil, fmt.Errorf("resolving order folder: %w", err)
		}

		summary.Results = p.uploader.UploadAll(ctx, folder, atts)
		summary.Uploaded, summary.Failed = batch.Tally(summary.Results)
	}

	if !p.opts.SkipEmail {
		notice := notify.Notice{
			Recipient:   recipient,
			ProjectID:   projectID,
			Status:      status,
			Attachments: atts,
		}

		if err := p.mailer.Send(ctx, notice); err != nil {
			p.logger.Error("notification email failed",
				slog.String("project_id", projectID),
				slog.String("error", err.Error()),
			)

			summary.EmailErr = err
		} else {
			summary.EmailSent = true
		}
	}

	p.postSummary(ctx, summary)

	return summary, nil
}

// prepareAttachments reads each file, recompresses oversized images, and
// renames everything to STATUS_<random>.<ext> so repeat runs never collide.
func (p *Pipeline) prepareAttachments(status string, files []string) ([]attachment.Attachment, error) {
	atts := make([]attachment.Attachment, 0, len(files))

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}

		ext := strings.ToLower(filepath.Ext(file))

		if p.opts.MaxImageBytes > 0 && imaging.CanOptimize(file) {
			optimized, reencoded := imaging.Optimize(data, p.opts.MaxImageBytes, p.logger)
			if reencoded {
				// Recompression always produces JPEG.
				ext = ".jpg"
			}

			data = optimized
		}

		name := fmt.Sprintf("%s_%s%s", status, p.newID(), ext)
		atts = append(atts, attachment.New(name, data, ""))
	}

	return atts, nil
}

func (p *Pipeline) postSummary(ctx context.Context, s *Summary) {
	if p.poster == nil {
		return
	}

	text := fmt.Sprintf("Order %s moved to %s: %d uploaded, %d failed", s.ProjectID, s.Status, s.Uploaded, s.Failed)
	if s.EmailSent {
		text += fmt.Sprintf(", email sent to %s", s.Recipient)
	} else if s.EmailErr != nil {
		text += ", email failed"
	}

	if err := p.poster.Post(ctx, text); err != nil {
		p.logger.Warn("channel post failed", slog.String("error", err.Error()))
	}
}
