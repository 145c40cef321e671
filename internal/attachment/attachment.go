// Package attachment defines the in-memory file payload passed between the
// upload batcher and the mail notifier.
package attachment

import (
	"path/filepath"
	"strings"
)

// Attachment is one named byte payload. Immutable once constructed; owned by
// the batch call that created it and not retained afterwards.
type Attachment struct {
	Name        string
	Data        []byte
	ContentType string
}

// New builds an Attachment, deriving the content type from the filename
// extension when contentType is empty.
func New(name string, data []byte, contentType string) Attachment {
	if contentType == "" {
		contentType = TypeForName(name)
	}

	return Attachment{Name: name, Data: data, ContentType: contentType}
}

// TypeForName maps a filename extension to a MIME type, defaulting to
// application/octet-stream.
func TypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// TotalSize sums the payload bytes across attachments.
func TotalSize(atts []Attachment) int64 {
	var total int64
	for i := range atts {
		total += int64(len(atts[i].Data))
	}

	return total
}
