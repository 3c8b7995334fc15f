package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapipe/types"
)

func TestNormalizeSkipsInvalidAndManifestEntries(t *testing.T) {
	raw := &rawInfo{
		Title:    "Example",
		Duration: 125,
		Formats: []rawFormat{
			{FormatID: "", Ext: "mp4", VCodec: "avc1", Width: 1920, Height: 1080},
			{FormatID: "95", Ext: "mp4", Protocol: "m3u8_native", VCodec: "avc1", Width: 1920, Height: 1080},
			{FormatID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a"},
			{FormatID: "137", Ext: "mp4", VCodec: "avc1", ACodec: "none", Width: 1920, Height: 1080, Filesize: 123456},
			{FormatID: "22", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Resolution: "1280x720"},
			{FormatID: "bad-video", Ext: "mp4", VCodec: "avc1", ACodec: "none"},
		},
	}

	info := normalize(raw)
	require.Len(t, info.Formats, 3)
	assert.Equal(t, "2:05", info.Duration)

	for _, f := range info.Formats {
		assert.NotEqual(t, "bad-video", f.FormatID)
	}
}

func TestNormalizeCanonicalizesContainerAliases(t *testing.T) {
	raw := &rawInfo{
		Formats: []rawFormat{
			{FormatID: "140", Ext: "m4a", ACodec: "mp4a", Filesize: 1000},
		},
	}
	info := normalize(raw)
	require.Len(t, info.Formats, 1)
	assert.Equal(t, "mp4", info.Formats[0].ContainerExt)
	assert.Equal(t, types.KindAudio, info.Formats[0].Kind)
	assert.Equal(t, "audio", info.Formats[0].Resolution)
}

func TestNormalizeDedupesPreferringKnownSize(t *testing.T) {
	raw := &rawInfo{
		Formats: []rawFormat{
			{FormatID: "18a", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Resolution: "640x360"},
			{FormatID: "18b", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Resolution: "640x360", Filesize: 5000},
		},
	}
	info := normalize(raw)
	require.Len(t, info.Formats, 1)
	assert.Equal(t, "18b", info.Formats[0].FormatID)
	assert.Equal(t, "4.88 KB", info.Formats[0].Filesize)
}

func TestNormalizeOrdersVideoBeforeAudioDescendingResolution(t *testing.T) {
	raw := &rawInfo{
		Formats: []rawFormat{
			{FormatID: "140", Ext: "m4a", ACodec: "mp4a", Filesize: 1000},
			{FormatID: "18", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Resolution: "640x360", Filesize: 1000},
			{FormatID: "137", Ext: "mp4", VCodec: "avc1", ACodec: "none", Resolution: "1920x1080", Filesize: 1000},
		},
	}
	info := normalize(raw)
	require.Len(t, info.Formats, 3)
	assert.Equal(t, "137", info.Formats[0].FormatID)
	assert.Equal(t, "18", info.Formats[1].FormatID)
	assert.Equal(t, "140", info.Formats[2].FormatID)
}

func TestFormatDurationUnknownForNonPositive(t *testing.T) {
	assert.Equal(t, "unknown", formatDuration(0))
	assert.Equal(t, "unknown", formatDuration(-5))
	assert.Equal(t, "1:00:00", formatDuration(3600))
}
