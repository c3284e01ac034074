// Package artifact handles resume locators returned by the backend: the
// canonical form sent upstream, the cache-busted form shown in previews, and
// the download name.
package artifact

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CacheBustParam is the query parameter appended to preview URLs
const CacheBustParam = "_t"

// OfficeViewerURL renders Word documents in an embeddable frame
const OfficeViewerURL = "https://view.officeapps.live.com/op/embed.aspx"

// FileType is the artifact format inferred from its locator
type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeDOCX    FileType = "docx"
	FileTypeUnknown FileType = "unknown"
)

// StripCacheBust removes the cache-busting parameter and any fragment.
// Other query parameters keep their order and encoding, so signed storage
// URLs stay valid. Stripping is idempotent.
func StripCacheBust(raw string) string {
	base, _, _ := strings.Cut(raw, "#")
	path, query, hasQuery := strings.Cut(base, "?")
	if !hasQuery {
		return path
	}

	kept := make([]string, 0, strings.Count(query, "&")+1)
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil && unescaped == CacheBustParam {
			continue
		}
		kept = append(kept, pair)
	}

	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}

// DetectFileType infers the artifact format from its locator
func DetectFileType(raw string) FileType {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "pdf"):
		return FileTypePDF
	case strings.Contains(lower, "docx"), hasDocExtension(lower):
		return FileTypeDOCX
	default:
		return FileTypeUnknown
	}
}

func hasDocExtension(lower string) bool {
	base, _, _ := strings.Cut(lower, "#")
	path, _, _ := strings.Cut(base, "?")
	return strings.HasSuffix(path, ".doc")
}

// CanPreview reports whether the artifact has an inline preview
func CanPreview(raw string) bool {
	return raw != "" && DetectFileType(raw) != FileTypeUnknown
}

// PreviewURL returns a render-only locator with a fresh cache-busting value.
// It must never be sent upstream.
func PreviewURL(raw string, at time.Time) string {
	if raw == "" {
		return ""
	}
	canonical := StripCacheBust(raw)
	ts := strconv.FormatInt(at.UnixMilli(), 10)

	switch DetectFileType(canonical) {
	case FileTypePDF:
		sep := "?"
		if strings.Contains(canonical, "?") {
			sep = "&"
		}
		return canonical + sep + CacheBustParam + "=" + ts
	case FileTypeDOCX:
		return OfficeViewerURL + "?src=" + url.QueryEscape(canonical) + "&" + CacheBustParam + "=" + ts
	default:
		return canonical
	}
}

// DownloadFilename returns the suggested name for a downloaded artifact
func DownloadFilename(raw string) string {
	if DetectFileType(raw) == FileTypePDF {
		return "resume.pdf"
	}
	return "resume.docx"
}
