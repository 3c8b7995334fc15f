package extractor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"mediapipe/config"
)

// progressLineRE matches the extractor's textual download progress, e.g.
// "[download]  42.0% of 12.34MiB".
var progressLineRE = regexp.MustCompile(`(?i)\[download\]\s+([\d.]+)%\s+of\s+([\d.]+)\s*(KiB|MiB|GiB)`)

var unitMultiplier = map[string]int64{
	"kib": 1024,
	"mib": 1024 * 1024,
	"gib": 1024 * 1024 * 1024,
}

// parseTotalFromStderrLine extracts a total byte count from one line of
// extractor stderr, if that line carries the progress pattern.
func parseTotalFromStderrLine(line string) (int64, bool) {
	m := progressLineRE.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	mult, ok := unitMultiplier[strings.ToLower(m[3])]
	if !ok {
		return 0, false
	}
	return int64(value * float64(mult)), true
}

// watchStderr scans stderr line by line, reporting any total byte count it
// can recover via onTotal, and logging non-progress, non-warning lines.
func watchStderr(r io.Reader, onTotal func(int64)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if total, ok := parseTotalFromStderrLine(line); ok {
			onTotal(total)
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "warning") || strings.TrimSpace(line) == "" {
			continue
		}
		log.Printf("extractor: %s", line)
	}
}

// countingReader wraps an io.Reader, invoking onChunk whenever at least
// chunkSize bytes have been read since the last callback (feed
// the progress bus in chunks of >= 64 KiB), and always on EOF/close so the
// final byte count is reported promptly.
type countingReader struct {
	r         io.Reader
	chunkSize int64
	onChunk   func(total int64)

	mu         sync.Mutex
	total      int64
	sinceFlush int64
}

func newCountingReader(r io.Reader, chunkSize int64, onChunk func(total int64)) *countingReader {
	return &countingReader{r: r, chunkSize: chunkSize, onChunk: onChunk}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.mu.Lock()
		c.total += int64(n)
		c.sinceFlush += int64(n)
		flush := c.sinceFlush >= c.chunkSize
		total := c.total
		if flush {
			c.sinceFlush = 0
		}
		c.mu.Unlock()
		if flush {
			c.onChunk(total)
		}
	}
	if err != nil {
		c.mu.Lock()
		total := c.total
		c.mu.Unlock()
		c.onChunk(total)
	}
	return n, err
}

// terminator holds the two-step graceful-then-kill termination logic shared
// by StreamDownload and ConvertMedia (SIGTERM, a grace window, then
// SIGKILL).
type terminator struct {
	once sync.Once
	cmds []*exec.Cmd
}

func (t *terminator) terminate() {
	t.once.Do(func() {
		for _, cmd := range t.cmds {
			if cmd.Process == nil {
				continue
			}
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
		go func() {
			time.Sleep(config.GracefulTermWindow)
			for _, cmd := range t.cmds {
				if cmd.Process == nil {
					continue
				}
				_ = cmd.Process.Kill()
			}
		}()
	})
}

// armTimeout starts a timer that terminates term's processes after d,
// unless stopped first. It returns a stop function.
func armTimeout(d time.Duration, term *terminator) (stop func()) {
	timer := time.AfterFunc(d, term.terminate)
	return func() { timer.Stop() }
}

func newExtractorCommand(ctx context.Context, extractorPath string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, extractorPath, args...)
}

func newTranscoderCommand(ctx context.Context, transcoderPath string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, transcoderPath, args...)
}

func isNotFoundErr(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return errors.Is(execErr.Err, exec.ErrNotFound) || strings.Contains(execErr.Err.Error(), "no such file")
	}
	return false
}
