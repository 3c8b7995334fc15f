package handlers

import (
	"fmt"
	"regexp"
	"strings"
)

var mimeTable = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"ogg":  "audio/ogg",
	"opus": "audio/opus",
	"flac": "audio/flac",
}

func mimeForExt(ext string) string {
	if mime, ok := mimeTable[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

var filenameDisallowed = regexp.MustCompile(`[^A-Za-z0-9 _.-]`)
var filenameWhitespace = regexp.MustCompile(`\s+`)

// sanitizeFilename strips the input down to a header-safe filename,
// collapsing whitespace and capping length. Idempotent: re-applying it to
// its own output yields the same string.
func sanitizeFilename(name string) string {
	cleaned := filenameDisallowed.ReplaceAllString(name, "")
	cleaned = filenameWhitespace.ReplaceAllString(cleaned, "_")
	if len(cleaned) > 100 {
		cleaned = cleaned[:100]
	}
	cleaned = strings.Trim(cleaned, "._ ")
	if cleaned == "" {
		return "download"
	}
	return cleaned
}

func filenameFor(title, ext string) string {
	if title == "" {
		title = "download"
	}
	return fmt.Sprintf("%s.%s", sanitizeFilename(title), ext)
}
