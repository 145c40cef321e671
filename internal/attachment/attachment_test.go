package attachment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDerivesContentType(t *testing.T) {
	a := New("photo.JPG", []byte{1, 2}, "")
	assert.Equal(t, "image/jpeg", a.ContentType)

	b := New("doc.pdf", nil, "application/x-custom")
	assert.Equal(t, "application/x-custom", b.ContentType)
}

func TestTypeForName(t *testing.T) {
	tests := map[string]string{
		"a.jpg":  "image/jpeg",
		"a.jpeg": "image/jpeg",
		"a.png":  "image/png",
		"a.gif":  "image/gif",
		"a.pdf":  "application/pdf",
		"a.bin":  "application/octet-stream",
		"noext":  "application/octet-stream",
	}

	for name, want := range tests {
		assert.Equal(t, want, TypeForName(name), name)
	}
}

func TestTotalSize(t *testing.T) {
	atts := []Attachment{
		{Name: "a", Data: make([]byte, 100)},
		{Name: "b", Data: make([]byte, 28)},
	}

	assert.Equal(t, int64(128), TotalSize(atts))
	assert.Zero(t, TotalSize(nil))
}
