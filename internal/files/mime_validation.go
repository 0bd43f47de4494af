package files

import (
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const maxNameLength = 100

// allowedMimeTypes are the receipt formats accepted for upload.
var allowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/heic",
	"application/pdf",
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// detectAllowed sniffs data and returns its canonical MIME type when it is one
// of the accepted receipt formats.
func detectAllowed(data []byte) (string, *mimetype.MIME, bool) {
	detected := mimetype.Detect(data)
	for _, allowed := range allowedMimeTypes {
		if detected.Is(allowed) {
			return allowed, detected, true
		}
	}
	return baseType(detected.String()), detected, false
}

func baseType(value string) string {
	mediaType, _, _ := strings.Cut(value, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// sanitizeName reduces a client supplied file name to a safe Drive name
// component. ext is used when nothing usable remains.
func sanitizeName(name, ext string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	clean := strings.Trim(unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_"), "._")
	if len(clean) > maxNameLength {
		clean = clean[len(clean)-maxNameLength:]
	}
	if clean == "" {
		clean = "file" + ext
	}
	return clean
}

func humanReadableTypes() string {
	short := make([]string, 0, len(allowedMimeTypes))
	for _, t := range allowedMimeTypes {
		_, sub, _ := strings.Cut(t, "/")
		short = append(short, sub)
	}
	return strings.Join(short[:len(short)-1], ", ") + " or " + short[len(short)-1]
}
