package repository

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/okian/callgen/internal/domain/model"
)

const defaultScannerMaxBytes = 4 * 1024 * 1024

// Reader iterates over records in a JSONL stream, skipping blank lines.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), defaultScannerMaxBytes)
	return &Reader{scanner: scanner}
}

// Next returns the next record or io.EOF.
func (r *Reader) Next() (model.Record, error) {
	for r.scanner.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec model.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return model.Record{}, fmt.Errorf("%w: line %d: %w", ErrMalformed, r.line, err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return model.Record{}, err
	}
	return model.Record{}, io.EOF
}

// ReadAll reads every record from r.
func ReadAll(r io.Reader) ([]model.Record, error) {
	reader := NewReader(r)
	var out []model.Record
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// ReadFile reads every record from path.
func ReadFile(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}

// ReadIDs returns the IDs already written to path. A missing file yields none.
// A truncated last line, as left by an interrupted run, is ignored.
func ReadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := NewReader(f)
	var ids []string
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if errors.Is(err, ErrMalformed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.ID != "" {
			ids = append(ids, rec.ID)
		}
	}
}
