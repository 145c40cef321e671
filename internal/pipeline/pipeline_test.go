package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadrelay/uploadrelay/internal/attachment"
	"github.com/uploadrelay/uploadrelay/internal/batch"
	"github.com/uploadrelay/uploadrelay/internal/folders"
	"github.com/uploadrelay/uploadrelay/internal/notify"
)

type fakeStore struct {
	emails map[string]string
	err    error
}

func (f *fakeStore) Lookup(_ context.Context, projectID string) (string, error) {
	return f.emails[projectID], f.err
}

type fakeResolver struct {
	calls []string
	err   error
}

func (f *fakeResolver) ResolveOrCreate(_ context.Context, driveID, folderPath string) (folders.Handle, error) {
	f.calls = append(f.calls, folderPath)
	if f.err != nil {
		return folders.Handle{}, f.err
	}

	return folders.Handle{ID: "folder1", DriveID: driveID}, nil
}

type fakeUploader struct {
	calls     int
	gotFolder folders.Handle
	gotNames  []string
	failNames map[string]bool
}

func (f *fakeUploader) UploadAll(_ context.Context, folder folders.Handle, atts []attachment.Attachment) []batch.Result {
	f.calls++
	f.gotFolder = folder

	results := make([]batch.Result, len(atts))
	for i, att := range atts {
		f.gotNames = append(f.gotNames, att.Name)

		results[i] = batch.Result{Filename: att.Name, URL: "https://example.com/" + att.Name}
		if f.failNames[att.Name] {
			results[i] = batch.Result{Filename: att.Name, Err: errors.New("upload failed")}
		}
	}

	return results
}

type fakeMailer struct {
	calls int
	got   notify.Notice
	err   error
}

func (f *fakeMailer) Send(_ context.Context, n notify.Notice) error {
	f.calls++
	f.got = n

	return f.err
}

type fakePoster struct {
	texts []string
}

func (f *fakePoster) Post(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

type fixture struct {
	store    *fakeStore
	resolver *fakeResolver
	uploader *fakeUploader
	mailer   *fakeMailer
	poster   *fakePoster
	pipeline *Pipeline
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		store:    &fakeStore{emails: map[string]string{"1001": "alice@example.com"}},
		resolver: &fakeResolver{},
		uploader: &fakeUploader{},
		mailer:   &fakeMailer{},
		poster:   &fakePoster{},
	}

	if opts.DriveID == "" {
		opts.DriveID = "d"
	}

	if opts.CustomerRoot == "" {
		opts.CustomerRoot = "Customer"
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.pipeline = New(f.store, f.resolver, f.uploader, f.mailer, f.poster, opts, logger)

	seq := 0
	f.pipeline.newID = func() string {
		seq++
		return fmt.Sprintf("id%d", seq)
	}

	return f
}

func writeTempFiles(t *testing.T, names ...string) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, len(names))

	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], []byte("payload-"+name), 0o644))
	}

	return paths
}

// writeTempPNG writes a decodable PNG large enough to trip a small
// recompression budget.
func writeTempPNG(t *testing.T, name string) string {
	t.Helper()

	// Gradient plus low-amplitude noise: large as PNG, small as JPEG.
	rng := uint32(1)
	noise := func() uint8 {
		rng = rng*1664525 + 1013904223
		return uint8(rng >> 28)
	}

	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			base := uint8((x + y) * 239 / 700)
			img.Set(x, y, color.RGBA{R: base + noise(), G: base + noise(), B: base + noise(), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path
}

func TestPipelineRun(t *testing.T) {
	f := newFixture(t, Options{})
	files := writeTempFiles(t, "front.jpg", "side.png")

	summary, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "1001",
		Status:    "shipped",
		Files:     files,
	})
	require.NoError(t, err)

	assert.Equal(t, "Customer/SHIPPED/1001", summary.FolderPath)
	require.Equal(t, []string{"Customer/SHIPPED/1001"}, f.resolver.calls)

	assert.Equal(t, 2, summary.Uploaded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, "folder1", f.uploader.gotFolder.ID)
	require.Equal(t, []string{"SHIPPED_id1.jpg", "SHIPPED_id2.png"}, f.uploader.gotNames)

	assert.True(t, summary.EmailSent)
	assert.Equal(t, 1, f.mailer.calls)
	assert.Equal(t, "alice@example.com", f.mailer.got.Recipient)
	assert.Equal(t, "SHIPPED", f.mailer.got.Status)
	assert.Len(t, f.mailer.got.Attachments, 2)

	require.Len(t, f.poster.texts, 1)
	assert.Contains(t, f.poster.texts[0], "Order 1001 moved to SHIPPED")
	assert.Contains(t, f.poster.texts[0], "email sent to alice@example.com")
}

func TestPipelineRecompressedImageGetsJPEGExtension(t *testing.T) {
	f := newFixture(t, Options{MaxImageBytes: 2048})
	file := writeTempPNG(t, "front.png")

	summary, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "1001",
		Status:    "SHIPPED",
		Files:     []string{file},
	})
	require.NoError(t, err)

	// The re-encoded payload is JPEG, so the stored name must not claim PNG.
	require.Equal(t, []string{"SHIPPED_id1.jpg"}, f.uploader.gotNames)
	assert.Equal(t, 1, summary.Uploaded)

	require.Len(t, f.mailer.got.Attachments, 1)
	assert.Equal(t, "image/jpeg", f.mailer.got.Attachments[0].ContentType)
}

func TestPipelineRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, Options{})
	files := writeTempFiles(t, "a.jpg")

	_, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "1001",
		Status:    "LOST",
		Files:     files,
	})
	require.ErrorIs(t, err, ErrUnknownStatus)
	assert.Zero(t, f.uploader.calls)
	assert.Zero(t, f.mailer.calls)
}

func TestPipelineRejectsUnknownProject(t *testing.T) {
	f := newFixture(t, Options{})
	files := writeTempFiles(t, "a.jpg")

	_, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "9999",
		Status:    "SHIPPED",
		Files:     files,
	})
	require.ErrorIs(t, err, ErrNoRecipient)
	assert.Zero(t, f.uploader.calls)
}

func TestPipelineRequiresFiles(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "1001",
		Status:    "SHIPPED",
	})
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestPipelineEmailFailureKeepsUploads(t *testing.T) {
	f := newFixture(t, Options{})
	f.mailer.err = &notify.DeliveryError{Kind: notify.TransportFailed, Err: errors.New("timeout")}
	files := writeTempFiles(t, "a.jpg")

	summary, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "1001",
		Status:    "PICKUP",
		Files:     files,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Uploaded)
	assert.False(t, summary.EmailSent)
	require.Error(t, summary.EmailErr)

	require.Len(t, f.poster.texts, 1)
	assert.Contains(t, f.poster.texts[0], "email failed")
}

func TestPipelinePartialUploadFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.uploader.failNames = map[string]bool{"SHIPPED_id2.png": true}
	files := writeTempFiles(t, "a.jpg", "b.png")

	summary, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "1001",
		Status:    "SHIPPED",
		Files:     files,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, summary.EmailSent)
}

func TestPipelineSkipFlags(t *testing.T) {
	f := newFixture(t, Options{SkipUpload: true, SkipEmail: true})
	files := writeTempFiles(t, "a.jpg")

	// No recipient on file is fine when no email will be sent.
	summary, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "9999",
		Status:    "PRODUCTION",
		Files:     files,
	})
	require.NoError(t, err)

	assert.Zero(t, f.uploader.calls)
	assert.Zero(t, f.mailer.calls)
	assert.Zero(t, summary.Uploaded)
	assert.False(t, summary.EmailSent)
}

func TestPipelineResolverFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.resolver.err = errors.New("drive unavailable")
	files := writeTempFiles(t, "a.jpg")

	_, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "1001",
		Status:    "SHIPPED",
		Files:     files,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving order folder")
	assert.Zero(t, f.mailer.calls)
}

func TestPipelineTrimsAndUppercasesInput(t *testing.T) {
	f := newFixture(t, Options{})
	files := writeTempFiles(t, "a.jpg")

	summary, err := f.pipeline.Run(context.Background(), Request{
		ProjectID: "  1001  ",
		Status:    " installation ",
		Files:     files,
	})
	require.NoError(t, err)

	assert.Equal(t, "1001", summary.ProjectID)
	assert.Equal(t, "INSTALLATION", summary.Status)
	assert.True(t, strings.HasPrefix(f.uploader.gotNames[0], "INSTALLATION_"))
}
