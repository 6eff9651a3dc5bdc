package domain

import "strings"

// Format is an output encoding the transformer can produce.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
)

var knownExtensions = map[string]Format{
	"jpg":  FormatJPEG,
	"jpeg": FormatJPEG,
	"webp": FormatWebP,
	"avif": FormatAVIF,
}

// ParseFormat normalizes a user-supplied format string, accepting "jpg"
// as an alias for "jpeg".
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, true
	case "webp":
		return FormatWebP, true
	case "avif":
		return FormatAVIF, true
	default:
		return "", false
	}
}

// Extension returns the on-disk file extension for a format.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatWebP:
		return "webp"
	case FormatAVIF:
		return "avif"
	default:
		return string(f)
	}
}

// ContentType returns the MIME type used on the wire for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

// FormatForExtension looks up the format for a stored cache artifact's
// extension, the inverse of Extension.
func FormatForExtension(ext string) (Format, bool) {
	f, ok := knownExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return f, ok
}

// KnownExtensions lists every extension Cache.Get must probe for.
func KnownExtensions() []string {
	return []string{"jpg", "webp", "avif"}
}
