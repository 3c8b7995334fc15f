package extractor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mediapipe/types"
)

// rawFormat is the subset of the extractor's per-format JSON this pipeline
// cares about. Field names follow the extractor's own JSON keys.
type rawFormat struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Protocol   string  `json:"protocol"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution string  `json:"resolution"`
	Filesize   int64   `json:"filesize"`
	FilesizeAp int64   `json:"filesize_approx"`
}

// rawInfo is the subset of the extractor's top-level dump-json output this
// pipeline normalizes into types.MediaInfo.
type rawInfo struct {
	Title     string      `json:"title"`
	Thumbnail string      `json:"thumbnail"`
	Duration  float64     `json:"duration"`
	Formats   []rawFormat `json:"formats"`
}

var containerAliases = map[string]string{
	"m4a":  "mp4",
	"m4v":  "mp4",
	"webma": "webm",
	"webmv": "webm",
	"ogg":  "opus",
}

func canonicalExt(ext string) string {
	ext = strings.ToLower(ext)
	if alias, ok := containerAliases[ext]; ok {
		return alias
	}
	return ext
}

func isManifestProtocol(protocol string) bool {
	p := strings.ToLower(protocol)
	return strings.Contains(p, "m3u8") || strings.Contains(p, "hls") || strings.Contains(p, "dash")
}

func codecAbsent(codec string) bool {
	c := strings.ToLower(strings.TrimSpace(codec))
	return c == "" || c == "none"
}

func formatKind(f rawFormat) (types.Kind, bool) {
	hasVideo := !codecAbsent(f.VCodec)
	hasAudio := !codecAbsent(f.ACodec)
	if !hasVideo && !hasAudio {
		return "", false
	}
	if hasVideo {
		return types.KindVideo, true
	}
	return types.KindAudio, true
}

// resolutionOf derives the public resolution string for a format.
// Prefer the extractor's own WxH/Np string, else derive from
// width/height, else "unknown".
func resolutionOf(kind types.Kind, f rawFormat) string {
	if kind == types.KindAudio {
		return "audio"
	}
	if isWxH(f.Resolution) || isNp(f.Resolution) {
		return f.Resolution
	}
	if f.Width > 0 && f.Height > 0 {
		return fmt.Sprintf("%dx%d", f.Width, f.Height)
	}
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	return "unknown"
}

func isWxH(s string) bool {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return false
	}
	_, err1 := strconv.Atoi(parts[0])
	_, err2 := strconv.Atoi(parts[1])
	return err1 == nil && err2 == nil
}

func isNp(s string) bool {
	if !strings.HasSuffix(s, "p") {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSuffix(s, "p"))
	return err == nil
}

// numericResolution returns a sortable magnitude for descending-resolution
// ordering: height for "WxH"/"Np", 0 for "audio"/"unknown".
func numericResolution(resolution string) int {
	if isWxH(resolution) {
		parts := strings.SplitN(resolution, "x", 2)
		h, _ := strconv.Atoi(parts[1])
		return h
	}
	if isNp(resolution) {
		h, _ := strconv.Atoi(strings.TrimSuffix(resolution, "p"))
		return h
	}
	return 0
}

func filesizeOf(f rawFormat) string {
	switch {
	case f.Filesize > 0:
		return humanSize(f.Filesize, false)
	case f.FilesizeAp > 0:
		return humanSize(f.FilesizeAp, true)
	default:
		return "unknown"
	}
}

func humanSize(bytes int64, approx bool) string {
	const unit = 1024.0
	size := float64(bytes)
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	for size >= unit && i < len(units)-1 {
		size /= unit
		i++
	}
	prefix := ""
	if approx {
		prefix = "~"
	}
	if i == 0 {
		return fmt.Sprintf("%s%.0f %s", prefix, size, units[i])
	}
	return fmt.Sprintf("%s%.2f %s", prefix, size, units[i])
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "unknown"
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// normalize applies the extractor's JSON → MediaInfo rules:
// skip entries lacking formatId/ext, skip manifest formats, skip entries
// with no codec, skip video entries with no dimension hint, canonicalize
// extensions, derive resolution/filesize, dedupe by (kind, ext, resolution)
// preferring a known size, then order video-before-audio / descending
// resolution.
func normalize(raw *rawInfo) *types.MediaInfo {
	type keyed struct {
		key string
		fd  types.FormatDescriptor
		num int
		hasSize bool
	}

	seen := make(map[string]int) // key -> index into ordered
	var ordered []keyed

	for _, f := range raw.Formats {
		if f.FormatID == "" || f.Ext == "" {
			continue
		}
		if isManifestProtocol(f.Protocol) {
			continue
		}
		kind, ok := formatKind(f)
		if !ok {
			continue
		}
		if kind == types.KindVideo && f.Width == 0 && f.Height == 0 && !isWxH(f.Resolution) && !isNp(f.Resolution) {
			continue
		}

		ext := canonicalExt(f.Ext)
		resolution := resolutionOf(kind, f)
		size := filesizeOf(f)
		hasSize := size != "unknown"

		key := string(kind) + "|" + ext + "|" + resolution
		fd := types.FormatDescriptor{
			FormatID:     f.FormatID,
			ContainerExt: ext,
			Resolution:   resolution,
			Filesize:     size,
			Kind:         kind,
		}
		num := numericResolution(resolution)

		if idx, exists := seen[key]; exists {
			if !ordered[idx].hasSize && hasSize {
				ordered[idx] = keyed{key: key, fd: fd, num: num, hasSize: hasSize}
			}
			continue
		}
		seen[key] = len(ordered)
		ordered = append(ordered, keyed{key: key, fd: fd, num: num, hasSize: hasSize})
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.fd.Kind != b.fd.Kind {
			return a.fd.Kind == types.KindVideo
		}
		return a.num > b.num
	})

	formats := make([]types.FormatDescriptor, 0, len(ordered))
	for _, k := range ordered {
		formats = append(formats, k.fd)
	}

	return &types.MediaInfo{
		Title:     raw.Title,
		Thumbnail: raw.Thumbnail,
		Duration:  formatDuration(raw.Duration),
		Formats:   formats,
	}
}
