// Package jsonl reads and writes line-delimited JSON files.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nikivdev/flow/internal/rawrec"
)

// ReadResult describes one best-effort read.
type ReadResult struct {
	Records []rawrec.Record
	Lines   int // lines considered after tailing
	Skipped int // blank, malformed or non-object lines
	Missing bool
}

// ReadTail reads the JSON objects on the last `last` lines of path (all lines
// when last <= 0). A missing file yields an empty result, not an error.
// Blank, malformed and non-object lines are skipped.
func ReadTail(path string, last int) (ReadResult, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ReadResult{Missing: true}, nil
	}
	if err != nil {
		return ReadResult{}, fmt.Errorf("jsonl: open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return ReadResult{}, fmt.Errorf("jsonl: read %s: %w", path, err)
	}
	return Parse(Tail(lines, last)), nil
}

// Parse decodes already-split lines.
func Parse(lines [][]byte) ReadResult {
	res := ReadResult{Lines: len(lines)}
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			res.Skipped++
			continue
		}
		rec, ok := rawrec.Decode(line)
		if !ok {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// Tail returns the last n lines, or all of them when n <= 0.
func Tail(lines [][]byte, n int) [][]byte {
	if n <= 0 || n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}

func readLines(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)
	var lines [][]byte
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			lines = append(lines, bytes.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Encode renders rows as compact JSON lines.
func Encode[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("jsonl: encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// WriteFile replaces path with rows, one JSON object per line. Parent
// directories are created as needed.
func WriteFile[T any](path string, rows []T) error {
	data, err := Encode(rows)
	if err != nil {
		return err
	}
	return writeWhole(path, data)
}

// WriteDocument replaces path with v rendered as indented JSON followed by a
// newline.
func WriteDocument(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("jsonl: encode %s: %w", filepath.Base(path), err)
	}
	return writeWhole(path, buf.Bytes())
}

func writeWhole(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("jsonl: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("jsonl: write %s: %w", path, err)
	}
	return nil
}
