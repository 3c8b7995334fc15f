package types

// Kind distinguishes audio-only formats from audio+video formats.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// FormatDescriptor is one selectable rendition of a piece of media, as
// normalized from the extractor's raw JSON output.
type FormatDescriptor struct {
	FormatID     string `json:"formatId"`
	ContainerExt string `json:"containerExt"`
	Resolution   string `json:"resolution"`
	Filesize     string `json:"filesize"`
	Kind         Kind   `json:"kind"`
}

// MediaInfo is the normalized metadata returned by analyze().
type MediaInfo struct {
	Title     string             `json:"title"`
	Thumbnail string             `json:"thumbnail"`
	Duration  string             `json:"duration"`
	Formats   []FormatDescriptor `json:"formats"`
}
