package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilenameStripsUnsafeCharacters(t *testing.T) {
	assert.Equal(t, "MySongTitle", sanitizeFilename("My/Song:Title"))
	assert.Equal(t, "download", sanitizeFilename("???"))
	assert.Equal(t, "download", sanitizeFilename(""))
}

func TestSanitizeFilenameIsIdempotent(t *testing.T) {
	cases := []string{"weird <>name* here", "Artist - Title (Remix) [2024].mp3", "短いファイル名"}
	for _, c := range cases {
		once := sanitizeFilename(c)
		twice := sanitizeFilename(once)
		assert.Equal(t, once, twice, c)
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	assert.LessOrEqual(t, len(sanitizeFilename(long)), 100)
}

func TestMimeForExt(t *testing.T) {
	assert.Equal(t, "video/mp4", mimeForExt("mp4"))
	assert.Equal(t, "audio/mpeg", mimeForExt("mp3"))
	assert.Equal(t, "application/octet-stream", mimeForExt("xyz"))
}
