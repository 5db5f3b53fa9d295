// Package schema checks published snapshot files against embedded JSON
// schemas.
package schema

import (
	"bufio"
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nikivdev/flow/internal/snapshot"
)

//go:embed schemas/*.json
var files embed.FS

// Schema kinds.
const (
	KindManifest   = "manifest"
	KindReport     = "report"
	KindRecord     = "record"
	KindEventCount = "event_count"
)

const baseURL = "https://flowset.local/schemas/"

// maxErrorsPerFile bounds the problems collected from one JSONL file.
const maxErrorsPerFile = 20

var compiled = sync.OnceValues(compileAll)

func compileAll() (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	kinds := []string{KindManifest, KindReport, KindRecord, KindEventCount}
	for _, kind := range kinds {
		data, err := files.ReadFile("schemas/" + kind + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", kind, err)
		}
		if err := compiler.AddResource(baseURL+kind+".schema.json", bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema: add %s: %w", kind, err)
		}
	}

	out := make(map[string]*jsonschema.Schema, len(kinds))
	for _, kind := range kinds {
		s, err := compiler.Compile(baseURL + kind + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("schema: compile %s: %w", kind, err)
		}
		out[kind] = s
	}
	return out, nil
}

// Result is the verdict for one file.
type Result struct {
	Path    string   `json:"path"`
	Kind    string   `json:"kind"`
	Records int      `json:"records"`
	Errors  []string `json:"errors"`
}

// OK reports whether the file passed.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Failed counts results with errors.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// ValidateDocument checks a single JSON document of the given kind.
func ValidateDocument(kind string, data []byte) error {
	s, err := lookup(kind)
	if err != nil {
		return err
	}
	v, err := decode(data)
	if err != nil {
		return err
	}
	return s.Validate(v)
}

// VerifySnapshot validates every file of the snapshot in l. Files are
// reported in publish order.
func VerifySnapshot(l snapshot.Layout) ([]Result, error) {
	if l.Name != snapshot.LatestName {
		if err := snapshot.ValidateName(l.Name); err != nil {
			return nil, err
		}
	}
	if _, err := compiled(); err != nil {
		return nil, err
	}

	checks := []struct {
		path  string
		kind  string
		lines bool
	}{
		{l.EventsPath(), KindRecord, true},
		{l.TrainPath(), KindRecord, true},
		{l.ValPath(), KindRecord, true},
		{l.TestPath(), KindRecord, true},
		{l.EventCountsPath(), KindEventCount, true},
		{l.SummaryPath(), KindManifest, false},
		{l.ManifestPath(), KindManifest, false},
		{l.ReportPath(), KindReport, false},
	}

	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		if c.lines {
			results = append(results, VerifyLines(c.path, c.kind))
		} else {
			results = append(results, VerifyDocument(c.path, c.kind))
		}
	}
	return results, nil
}

// VerifyDocument validates the JSON document at path.
func VerifyDocument(path, kind string) Result {
	res := Result{Path: path, Kind: kind}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Records = 1
	if err := ValidateDocument(kind, data); err != nil {
		res.Errors = append(res.Errors, describe(err))
	}
	return res
}

// VerifyLines validates every line of the JSONL file at path.
func VerifyLines(path, kind string) Result {
	res := Result{Path: path, Kind: kind}
	s, err := lookup(kind)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	f, err := os.Open(path)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	defer f.Close()

	br := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")
			if err := validateLine(s, line); err != nil {
				res.addLineError(lineNo, err)
			}
			res.Records++
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			res.Errors = append(res.Errors, readErr.Error())
			break
		}
	}
	return res
}

func (r *Result) addLineError(lineNo int, err error) {
	switch {
	case len(r.Errors) < maxErrorsPerFile:
		r.Errors = append(r.Errors, fmt.Sprintf("line %d: %s", lineNo, describe(err)))
	case len(r.Errors) == maxErrorsPerFile:
		r.Errors = append(r.Errors, "further errors omitted")
	}
}

func validateLine(s *jsonschema.Schema, line []byte) error {
	if len(bytes.TrimSpace(line)) == 0 {
		return errors.New("blank line")
	}
	v, err := decode(line)
	if err != nil {
		return err
	}
	return s.Validate(v)
}

func lookup(kind string) (*jsonschema.Schema, error) {
	all, err := compiled()
	if err != nil {
		return nil, err
	}
	s, ok := all[kind]
	if !ok {
		return nil, fmt.Errorf("schema: unknown kind %q", kind)
	}
	return s, nil
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid json: trailing data")
	}
	return v, nil
}

// describe flattens a validation error to its leaf causes.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaves := leafCauses(ve, nil)
	if len(leaves) == 0 {
		return ve.Error()
	}
	msgs := make([]string, 0, len(leaves))
	for _, l := range leaves {
		loc := l.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		msgs = append(msgs, loc+": "+l.Message)
	}
	return strings.Join(msgs, "; ")
}

func leafCauses(ve *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return append(out, ve)
	}
	for _, c := range ve.Causes {
		out = leafCauses(c, out)
	}
	return out
}
