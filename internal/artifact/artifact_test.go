package artifact

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCacheBust(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no params", "https://storage.example/r/out.pdf", "https://storage.example/r/out.pdf"},
		{"only cache bust", "https://storage.example/r/out.pdf?_t=1700000000000", "https://storage.example/r/out.pdf"},
		{"cache bust first", "https://s/out.pdf?_t=1&X-Goog-Signature=abc", "https://s/out.pdf?X-Goog-Signature=abc"},
		{"cache bust last", "https://s/out.pdf?X-Goog-Expires=900&_t=1", "https://s/out.pdf?X-Goog-Expires=900"},
		{"order preserved", "https://s/o.pdf?b=2&_t=9&a=1", "https://s/o.pdf?b=2&a=1"},
		{"fragment removed", "https://s/o.pdf#zoom=page-width", "https://s/o.pdf"},
		{"both", "https://s/o.pdf?_t=5#page=2", "https://s/o.pdf"},
		{"similar key kept", "https://s/o.pdf?_ts=5", "https://s/o.pdf?_ts=5"},
		{"encoded key removed", "https://s/o.pdf?%5Ft=5&a=1", "https://s/o.pdf?a=1"},
		{"relative", "/files/o.pdf?_t=3", "/files/o.pdf"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripCacheBust(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, StripCacheBust(got), "stripping is idempotent")
		})
	}
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, FileTypePDF, DetectFileType("https://s/Resume.PDF"))
	assert.Equal(t, FileTypeDOCX, DetectFileType("https://s/resume.docx?sig=1"))
	assert.Equal(t, FileTypeDOCX, DetectFileType("https://s/resume.doc"))
	assert.Equal(t, FileTypeUnknown, DetectFileType("https://s/resume.txt"))
	assert.False(t, CanPreview(""))
	assert.True(t, CanPreview("https://s/resume.pdf"))
}

func TestPreviewURL(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	t.Run("pdf without query", func(t *testing.T) {
		assert.Equal(t, "https://s/o.pdf?_t=1700000000123", PreviewURL("https://s/o.pdf", at))
	})

	t.Run("pdf with query", func(t *testing.T) {
		assert.Equal(t, "https://s/o.pdf?sig=1&_t=1700000000123", PreviewURL("https://s/o.pdf?sig=1", at))
	})

	t.Run("stale cache bust replaced", func(t *testing.T) {
		assert.Equal(t, "https://s/o.pdf?_t=1700000000123", PreviewURL("https://s/o.pdf?_t=1", at))
	})

	t.Run("docx goes through office viewer", func(t *testing.T) {
		got := PreviewURL("https://s/o.docx?sig=a&b=c", at)
		u, err := url.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, "view.officeapps.live.com", u.Host)
		assert.Equal(t, "https://s/o.docx?sig=a&b=c", u.Query().Get("src"))
		assert.Equal(t, "1700000000123", u.Query().Get("_t"))
	})

	t.Run("unknown left alone", func(t *testing.T) {
		assert.Equal(t, "https://s/o.txt", PreviewURL("https://s/o.txt#x", at))
	})

	t.Run("preview strips back to canonical", func(t *testing.T) {
		assert.Equal(t, "https://s/o.pdf?sig=1", StripCacheBust(PreviewURL("https://s/o.pdf?sig=1", at)))
	})
}

func TestDownloadFilename(t *testing.T) {
	assert.Equal(t, "resume.pdf", DownloadFilename("https://s/o.pdf"))
	assert.Equal(t, "resume.docx", DownloadFilename("https://s/o.docx"))
	assert.Equal(t, "resume.docx", DownloadFilename("https://s/o"))
}
