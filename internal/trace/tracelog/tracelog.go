// Package tracelog persists trace records as zstd-compressed JSONL
// segments. Segments rotate by tick, never by wall clock, so two replicas
// of the same run produce byte-comparable segment sets.
package tracelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"tickmind.ai/internal/trace"
)

// Line is the on-disk framing: exactly one of Decision or Digest is set.
type Line struct {
	Type     string                `json:"type"`
	Decision *trace.DecisionRecord `json:"decision,omitempty"`
	Digest   *trace.DigestRecord   `json:"digest,omitempty"`
}

type Writer struct {
	dir         string
	prefix      string
	rotateTicks uint64
	flushEvery  int

	mu       sync.Mutex
	started  bool
	segStart uint64
	pending  int
	f        *os.File
	enc      *zstd.Encoder
	w        *bufio.Writer
}

// NewWriter creates a segment writer. rotateTicks of zero keeps the whole
// run in one segment. flushEvery is the number of records buffered between
// flushes to disk; zero or one flushes after every record.
func NewWriter(dir, prefix string, rotateTicks uint64, flushEvery int) *Writer {
	return &Writer{dir: dir, prefix: prefix, rotateTicks: rotateTicks, flushEvery: flushEvery}
}

func (w *Writer) WriteDecision(rec trace.DecisionRecord) error {
	return w.write(rec.Tick, Line{Type: "decision", Decision: &rec})
}

func (w *Writer) WriteDigest(rec trace.DigestRecord) error {
	return w.write(rec.Tick, Line{Type: "digest", Digest: &rec})
}

func (w *Writer) write(tick uint64, line Line) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	seg := uint64(0)
	if w.rotateTicks > 0 {
		seg = tick - tick%w.rotateTicks
	}
	if !w.started || seg != w.segStart {
		if err := w.rotateLocked(seg); err != nil {
			return err
		}
	}

	b, err := json.Marshal(line)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.pending++
	if w.pending < w.flushEvery {
		return nil
	}
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	w.pending = 0
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *Writer) rotateLocked(seg uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := w.segmentPath(seg)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.segStart = seg
	w.pending = 0
	w.started = true
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *Writer) segmentPath(seg uint64) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%010d.jsonl.zst", w.prefix, seg))
}

// ReadSegment decodes every line of one segment file.
func ReadSegment(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Line
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var line Line
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadAll decodes every segment with the given prefix in tick order.
func ReadAll(dir, prefix string) ([]Line, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	// Zero-padded segment start ticks make lexical order tick order.
	sort.Strings(paths)

	var out []Line
	for _, p := range paths {
		lines, err := ReadSegment(p)
		if err != nil {
			return nil, err
		}
		out = append(out, lines...)
	}
	return out, nil
}
