// Package record loads the brochure records an import run writes.
package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

var (
	ErrNotArray     = errors.New("input is not a JSON array")
	ErrNotObject    = errors.New("input element is not a JSON object")
	ErrTrailingData = errors.New("unexpected data after JSON array")
)

// Record is one input element. Fields is the document body exactly as read
// (numbers are json.Number). Label is the value of the label field, or a
// positional placeholder when that field is missing, in which case Flagged
// is set. Err is set for an element that is not a JSON object; such a
// record has no Fields and is never written.
type Record struct {
	Index   int
	Fields  map[string]any
	Label   string
	Flagged bool
	Err     error
}

// Get returns a top-level field.
func (r Record) Get(field string) (any, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// LoadFile reads the record collection from a JSON file.
func LoadFile(path, labelField string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	defer f.Close()
	recs, err := Decode(f, labelField)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return recs, nil
}

// Decode parses a top-level JSON array. Elements that are not objects are
// kept in place with Err set, so one bad element fails only itself.
func Decode(r io.Reader, labelField string) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "decode input")
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, ErrTrailingData
	}

	items, ok := v.([]any)
	if !ok {
		return nil, ErrNotArray
	}
	recs := make([]Record, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			recs = append(recs, Record{
				Index:   i,
				Label:   placeholder(i),
				Flagged: true,
				Err:     errors.Wrapf(ErrNotObject, "index %d", i),
			})
			continue
		}
		recs = append(recs, newRecord(i, fields, labelField))
	}
	return recs, nil
}

func newRecord(i int, fields map[string]any, labelField string) Record {
	rec := Record{Index: i, Fields: fields}
	if s, ok := fields[labelField].(string); ok && s != "" {
		rec.Label = s
	} else {
		rec.Label = placeholder(i)
		rec.Flagged = true
	}
	return rec
}

func placeholder(i int) string {
	return fmt.Sprintf("<untitled #%d>", i+1)
}
