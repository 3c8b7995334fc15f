package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bytesFromFloat(f float64) int64 {
	return int64(f)
}

func TestParseTotalFromStderrLine(t *testing.T) {
	cases := []struct {
		line string
		want int64
		ok   bool
	}{
		{"[download]  42.0% of 12.34MiB", bytesFromFloat(12.34 * 1024 * 1024), true},
		{"[download] 100% of 1.00GiB", bytesFromFloat(1.00 * 1024 * 1024 * 1024), true},
		{"[download]  10.5% of 500.00KiB", bytesFromFloat(500.00 * 1024), true},
		{"[youtube] Extracting URL", 0, false},
		{"WARNING: some warning", 0, false},
	}
	for _, tc := range cases {
		total, ok := parseTotalFromStderrLine(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		if tc.ok {
			assert.InDelta(t, tc.want, total, 1, tc.line)
		}
	}
}

func TestTranscodeArgsKnownFormats(t *testing.T) {
	for _, format := range []string{"mp3", "aac", "m4a", "opus", "wav", "mp4", "webm"} {
		args, err := transcodeArgs(format)
		assert.NoError(t, err, format)
		assert.NotEmpty(t, args, format)
	}
}

func TestTranscodeArgsRejectsUnknownFormat(t *testing.T) {
	_, err := transcodeArgs("exotic")
	assert.Error(t, err)

	kind, ok := AsError(err)
	assert.True(t, ok)
	assert.Equal(t, KindUnsupported, kind.Kind)
}
