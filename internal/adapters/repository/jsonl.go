// Package repository persists generated conversations as JSON lines.
package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/callgen/internal/domain/model"
)

// Store receives finished conversations and failures.
type Store interface {
	Save(ctx context.Context, d model.FullDialogue) error
	SaveFailure(ctx context.Context, f model.Failure) error
	Count() int
	Close() error
}

// JSONLStore appends one record per line. Every write is flushed so an
// interrupted run leaves a readable file behind.
type JSONLStore struct {
	mu           sync.Mutex
	path         string
	fullDir      string
	failuresPath string
	appendMode   bool

	out      *os.File
	w        *bufio.Writer
	failures *os.File
	fw       *bufio.Writer

	count  int
	closed bool
}

var _ Store = (*JSONLStore)(nil)

// Open creates or opens the output files.
func Open(path string, opts ...Option) (*JSONLStore, error) {
	if path == "" {
		return nil, ErrNoOutput
	}
	s := &JSONLStore{path: path}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.out, err = openFile(path, s.appendMode); err != nil {
		return nil, err
	}
	s.w = bufio.NewWriter(s.out)

	if s.failuresPath != "" {
		if s.failures, err = openFile(s.failuresPath, s.appendMode); err != nil {
			_ = s.out.Close()
			return nil, err
		}
		s.fw = bufio.NewWriter(s.failures)
	}
	if s.fullDir != "" {
		if err := os.MkdirAll(s.fullDir, 0o755); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("create dialogue dir: %w", err)
		}
	}
	return s, nil
}

func openFile(path string, appendMode bool) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		if err := trimPartialLine(path); err != nil {
			return nil, fmt.Errorf("repair %s: %w", path, err)
		}
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// trimPartialLine drops a trailing line without its newline, as left by an
// interrupted write, so appended records start on a line of their own.
func trimPartialLine(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	size := st.Size()
	buf := make([]byte, 4096)
	for end := size; end > 0; {
		n := min(int64(len(buf)), end)
		if _, err := f.ReadAt(buf[:n], end-n); err != nil {
			return err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			if keep := end - n + int64(i) + 1; keep < size {
				return f.Truncate(keep)
			}
			return nil
		}
		end -= n
	}
	if size > 0 {
		return f.Truncate(0)
	}
	return nil
}

// Save appends the record line and, if configured, the full dialogue file.
func (s *JSONLStore) Save(_ context.Context, d model.FullDialogue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := writeLine(s.w, d.Record); err != nil {
		return fmt.Errorf("write record %s: %w", d.Record.ID, err)
	}
	s.count++

	if s.fullDir == "" {
		return nil
	}
	data, err := marshal(d, "  ")
	if err != nil {
		return fmt.Errorf("marshal dialogue %s: %w", d.Record.ID, err)
	}
	if err := os.WriteFile(filepath.Join(s.fullDir, d.Record.ID+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write dialogue %s: %w", d.Record.ID, err)
	}
	return nil
}

// SaveFailure appends to the failures file. It is a no-op without one.
func (s *JSONLStore) SaveFailure(_ context.Context, f model.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.fw == nil {
		return nil
	}
	if err := writeLine(s.fw, f); err != nil {
		return fmt.Errorf("write failure %s: %w", f.ID, err)
	}
	return nil
}

// Count returns the records written by this store.
func (s *JSONLStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close flushes and closes all files. Calling it twice is safe.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(s.w.Flush())
	keep(s.out.Close())
	if s.failures != nil {
		keep(s.fw.Flush())
		keep(s.failures.Close())
	}
	return firstErr
}

func writeLine(w *bufio.Writer, v any) error {
	line, err := marshal(v, "")
	if err != nil {
		return err
	}
	if _, err := w.Write(line); err != nil {
		return err
	}
	return w.Flush()
}

// marshal encodes without HTML escaping and ends with a newline.
func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	data, err := marshal(v, "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
