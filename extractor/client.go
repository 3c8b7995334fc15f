// Package extractor wraps the external extractor (yt-dlp-compatible) and
// transcoder (ffmpeg-compatible) CLIs, turning their subprocess lifecycle
// into three operations: Analyze, StreamDownload, and
// ConvertMedia.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"

	"mediapipe/config"
	"mediapipe/progress"
	"mediapipe/types"
)

// Client is the single entry point onto the extractor/transcoder CLIs. It is
// safe for concurrent use; each call spawns its own subprocess(es).
type Client struct {
	extractorPath  string
	transcoderPath string
	bus            *progress.Bus
	cache          *Cache
}

// NewClient builds a Client wired to bus for progress reporting and cache
// for analyze() memoization.
func NewClient(bus *progress.Bus, cache *Cache) *Client {
	return &Client{
		extractorPath:  config.GetExtractorPath(),
		transcoderPath: config.GetTranscoderPath(),
		bus:            bus,
		cache:          cache,
	}
}

// Analyze runs the extractor in metadata-only mode and normalizes its
// output into a types.MediaInfo.
func (c *Client) Analyze(ctx context.Context, url string) (*types.MediaInfo, error) {
	if c.cache != nil {
		if info, ok := c.cache.Get(url); ok {
			return info, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, config.AnalyzeTimeout)
	defer cancel()

	cmd := newExtractorCommand(ctx, c.extractorPath,
		"--dump-json", "--no-playlist", "--no-warnings", "--no-call-home", url)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: config.AnalyzeBufferCap}
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if isNotFoundErr(err) {
			return nil, newError(KindNotFound, "extractor binary not found", err)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, newError(KindTimeout, "analyze timed out", err)
		}
		return nil, newError(classifyStderr(stderr.String()), stderr.String(), err)
	}

	var raw rawInfo
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, newError(KindFailed, "could not parse extractor output", err)
	}

	info := normalize(&raw)
	if c.cache != nil {
		c.cache.Set(url, info)
	}
	return info, nil
}

// limitedWriter caps how many bytes will be buffered from the extractor's
// stdout, so a pathological --dump-json response cannot exhaust memory.
type limitedWriter struct {
	w       io.Writer
	limit   int64
	written int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.written >= l.limit {
		return len(p), nil
	}
	remaining := l.limit - l.written
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := l.w.Write(p)
	l.written += int64(n)
	return len(p), err
}

// StreamDownload spawns the extractor in single-format stdout-streaming
// mode and returns a reader of the media bytes. Byte counts are mirrored to
// the progress bus under downloadID as they are read.
// cleanup must be called at least once, whether or not the stream is read to
// completion; calls after the first are no-ops.
func (c *Client) StreamDownload(ctx context.Context, url, formatID, downloadID string) (stream io.ReadCloser, cleanup func(), err error) {
	cmd := newExtractorCommand(context.Background(), c.extractorPath,
		"-f", formatID, "--prefer-free-formats",
		"--no-playlist", "--no-warnings", "--no-call-home",
		"-o", "-", url)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, newError(KindFailed, "could not open extractor stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, newError(KindFailed, "could not open extractor stderr", err)
	}

	if err := cmd.Start(); err != nil {
		if isNotFoundErr(err) {
			return nil, nil, newError(KindNotFound, "extractor binary not found", err)
		}
		return nil, nil, newError(KindFailed, "could not start extractor", err)
	}

	term := &terminator{cmds: []*exec.Cmd{cmd}}
	c.bus.RegisterCanceler(downloadID, term.terminate)
	stopTimeout := armTimeout(config.DownloadTimeout(), term)

	var knownTotal atomic.Pointer[int64]
	go watchStderr(stderr, func(total int64) {
		knownTotal.Store(&total)
	})

	counted := newCountingReader(stdout, config.ByteCounterChunk, func(total int64) {
		c.bus.UpdateProgress(downloadID, total, knownTotal.Load())
	})

	done := make(chan struct{})
	go func() {
		waitErr := cmd.Wait()
		if waitErr != nil {
			c.bus.MarkError(downloadID, fmt.Sprintf("extractor exited with error: %v", waitErr))
		} else {
			c.bus.MarkCompleted(downloadID)
		}
		close(done)
	}()

	var cleanupOnce bool
	cleanup = func() {
		if cleanupOnce {
			return
		}
		cleanupOnce = true
		stopTimeout()
		term.terminate()
		<-done
	}

	go func() {
		select {
		case <-ctx.Done():
			term.terminate()
		case <-done:
		}
	}()

	return io.NopCloser(counted), cleanup, nil
}

// transcodeArgs returns the transcoder's format-specific argument list for
// targetFormat, reading from stdin and writing to stdout. mp3 and aac
// re-encode the audio track; mp4 and webm are stream-copy remuxes. These four
// match the external transcoder's documented invocation table; m4a, opus,
// and wav are supplemental targets layered on top in the same style.
func transcodeArgs(targetFormat string) ([]string, error) {
	switch targetFormat {
	case "mp3":
		return []string{"-i", "pipe:0", "-vn", "-acodec", "libmp3lame", "-ab", "192k", "-ar", "44100", "-f", "mp3", "pipe:1"}, nil
	case "aac":
		return []string{"-i", "pipe:0", "-vn", "-acodec", "aac", "-ab", "192k", "-ar", "44100", "-f", "adts", "pipe:1"}, nil
	case "m4a":
		return []string{"-i", "pipe:0", "-vn", "-acodec", "aac", "-ab", "192k", "-ar", "44100", "-f", "ipod", "pipe:1"}, nil
	case "opus":
		return []string{"-i", "pipe:0", "-vn", "-acodec", "libopus", "-b:a", "128k", "-f", "opus", "pipe:1"}, nil
	case "wav":
		return []string{"-i", "pipe:0", "-vn", "-acodec", "pcm_s16le", "-f", "wav", "pipe:1"}, nil
	case "mp4":
		return []string{"-i", "pipe:0", "-c", "copy", "-f", "mp4", "-movflags", "frag_keyframe+empty_moov", "pipe:1"}, nil
	case "webm":
		return []string{"-i", "pipe:0", "-c", "copy", "-f", "webm", "pipe:1"}, nil
	default:
		return nil, newError(KindUnsupported, fmt.Sprintf("unsupported target format %q", targetFormat), nil)
	}
}

// ConvertMedia pipes the extractor's best-quality stream directly into the
// transcoder and returns a reader of the converted bytes. The
// extractor's stdout and the transcoder's stdin are joined by an explicit
// io.Pipe so that the extractor's exit (success or failure) deterministically
// closes the transcoder's stdin rather than relying on pipe-fd inheritance.
func (c *Client) ConvertMedia(ctx context.Context, url, targetFormat, downloadID string) (stream io.ReadCloser, cleanup func(), err error) {
	args, err := transcodeArgs(targetFormat)
	if err != nil {
		return nil, nil, err
	}

	extractCmd := newExtractorCommand(context.Background(), c.extractorPath,
		"-f", "best",
		"--no-playlist", "--no-warnings", "--no-call-home",
		"-o", "-", url)
	transcodeCmd := newTranscoderCommand(context.Background(), c.transcoderPath, args...)

	extractStdout, err := extractCmd.StdoutPipe()
	if err != nil {
		return nil, nil, newError(KindFailed, "could not open extractor stdout", err)
	}
	extractStderr, err := extractCmd.StderrPipe()
	if err != nil {
		return nil, nil, newError(KindFailed, "could not open extractor stderr", err)
	}

	pr, pw := io.Pipe()
	transcodeCmd.Stdin = pr
	transcodeStdout, err := transcodeCmd.StdoutPipe()
	if err != nil {
		return nil, nil, newError(KindFailed, "could not open transcoder stdout", err)
	}
	transcodeStderr, err := transcodeCmd.StderrPipe()
	if err != nil {
		return nil, nil, newError(KindFailed, "could not open transcoder stderr", err)
	}

	if err := extractCmd.Start(); err != nil {
		if isNotFoundErr(err) {
			return nil, nil, newError(KindNotFound, "extractor binary not found", err)
		}
		return nil, nil, newError(KindFailed, "could not start extractor", err)
	}
	if err := transcodeCmd.Start(); err != nil {
		_ = extractCmd.Process.Kill()
		if isNotFoundErr(err) {
			return nil, nil, newError(KindNotFound, "transcoder binary not found", err)
		}
		return nil, nil, newError(KindFailed, "could not start transcoder", err)
	}

	term := &terminator{cmds: []*exec.Cmd{extractCmd, transcodeCmd}}
	c.bus.RegisterCanceler(downloadID, term.terminate)
	stopTimeout := armTimeout(config.ConversionTimeout(), term)

	go watchStderr(extractStderr, func(int64) {})
	go watchStderr(transcodeStderr, func(int64) {})

	go func() {
		_, copyErr := io.Copy(pw, extractStdout)
		extractWaitErr := extractCmd.Wait()
		if copyErr != nil {
			pw.CloseWithError(copyErr)
		} else if extractWaitErr != nil {
			pw.CloseWithError(extractWaitErr)
		} else {
			pw.Close()
		}
	}()

	counted := newCountingReader(transcodeStdout, config.ByteCounterChunk, func(total int64) {
		c.bus.UpdateProgress(downloadID, total, nil)
	})

	done := make(chan struct{})
	go func() {
		waitErr := transcodeCmd.Wait()
		// Some transcoder builds exit 255 on a clean pipe-closed shutdown;
		// treat that as success rather than failure.
		if waitErr != nil && !isExitCode(waitErr, 255) {
			c.bus.MarkError(downloadID, fmt.Sprintf("transcoder exited with error: %v", waitErr))
		} else {
			c.bus.MarkCompleted(downloadID)
		}
		close(done)
	}()

	var cleanupOnce bool
	cleanup = func() {
		if cleanupOnce {
			return
		}
		cleanupOnce = true
		stopTimeout()
		term.terminate()
		<-done
	}

	go func() {
		select {
		case <-ctx.Done():
			term.terminate()
		case <-done:
		}
	}()

	return io.NopCloser(counted), cleanup, nil
}

func isExitCode(err error, code int) bool {
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode() == code
	}
	return false
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}
