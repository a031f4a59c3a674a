// Package importer uploads a record collection to a document store, one
// record at a time, in input order. A failed record is logged and skipped;
// it never stops the run.
package importer

import (
	"context"
	"strings"
	"time"

	"github.com/catalog-importer/internal/progress"
	"github.com/catalog-importer/internal/record"
	"github.com/catalog-importer/internal/store"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

var (
	ErrMissingLabel = errors.New("record has no label")
	ErrMissingKey   = errors.New("record is missing a replace-by field")
	ErrKeyNotScalar = errors.New("replace-by field is an object or array")
)

// Options configures a run. Collection is required; everything else is optional.
type Options struct {
	Collection string
	// StrictLabel rejects records whose label field is missing instead of
	// uploading them under a placeholder label.
	StrictLabel bool
	// TimestampField, if set, is written with the store's server time.
	TimestampField string
	// ReplaceBy names fields forming a natural key. The first record of
	// each key in a run deletes existing documents with that key first.
	ReplaceBy []string
	Limiter   *rate.Limiter
	Progress  *progress.Counter
	Logger    *log.Logger
}

// Outcome is the result of attempting one record.
type Outcome struct {
	Record record.Record
	ID     string
	Err    error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Summary is the fold of a run's outcomes.
type Summary struct {
	Attempted int
	Uploaded  int
	Failed    int
	// Skipped counts records never attempted because the run was cancelled.
	Skipped  int
	IDs      []string
	Failures []Outcome
}

// Fold aggregates outcomes in order.
func Fold(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		s.Attempted++
		if o.OK() {
			s.Uploaded++
			s.IDs = append(s.IDs, o.ID)
			continue
		}
		s.Failed++
		s.Failures = append(s.Failures, o)
	}
	return s
}

// Importer holds the store handle for one run.
type Importer struct {
	store   store.Store
	opts    Options
	log     *log.Logger
	cleared map[string]bool
}

func New(s store.Store, opts Options) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Importer{store: s, opts: opts, log: logger, cleared: make(map[string]bool)}
}

// Run attempts every record once, in order. It returns early only when ctx
// is cancelled; the records left over are reported as Skipped.
func (im *Importer) Run(ctx context.Context, records []record.Record) Summary {
	im.log.Infof("Starting upload to collection: %s", im.opts.Collection)

	outcomes := make([]Outcome, 0, len(records))
	skipped := 0
	for i, rec := range records {
		if err := im.wait(ctx); err != nil {
			skipped = len(records) - i
			im.log.Warn("Upload interrupted", "remaining", skipped, "err", err)
			break
		}
		start := time.Now()
		o := im.upload(ctx, rec)
		if im.opts.Progress != nil {
			im.opts.Progress.Record(o.OK(), time.Since(start))
		}
		im.report(o)
		outcomes = append(outcomes, o)
	}

	s := Fold(outcomes)
	s.Skipped = skipped
	im.log.Infof("Finished uploading. Total brochures uploaded: %d", s.Uploaded)
	return s
}

func (im *Importer) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if im.opts.Limiter == nil {
		return nil
	}
	if err := im.opts.Limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (im *Importer) upload(ctx context.Context, rec record.Record) Outcome {
	if rec.Err != nil {
		return Outcome{Record: rec, Err: rec.Err}
	}
	if rec.Flagged && im.opts.StrictLabel {
		return Outcome{Record: rec, Err: ErrMissingLabel}
	}
	if err := im.replace(ctx, rec); err != nil {
		return Outcome{Record: rec, Err: err}
	}
	id, err := im.store.Add(ctx, im.opts.Collection, im.document(rec))
	if err != nil {
		return Outcome{Record: rec, Err: err}
	}
	return Outcome{Record: rec, ID: id}
}

// document copies the record fields so the collection stays unmodified.
func (im *Importer) document(rec record.Record) map[string]any {
	doc := make(map[string]any, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		doc[k] = v
	}
	if im.opts.TimestampField != "" {
		doc[im.opts.TimestampField] = store.ServerTimestamp
	}
	return doc
}

func (im *Importer) replace(ctx context.Context, rec record.Record) error {
	if len(im.opts.ReplaceBy) == 0 {
		return nil
	}
	match := make(map[string]any, len(im.opts.ReplaceBy))
	parts := make([]string, 0, len(im.opts.ReplaceBy))
	for _, f := range im.opts.ReplaceBy {
		v, ok := rec.Get(f)
		if !ok {
			return errors.Wrapf(ErrMissingKey, "%q", f)
		}
		switch v.(type) {
		case map[string]any, []any:
			return errors.Wrapf(ErrKeyNotScalar, "%q", f)
		}
		match[f] = v
		parts = append(parts, f+"="+store.Text(v))
	}
	key := strings.Join(parts, ", ")
	if im.cleared[key] {
		return nil
	}
	n, err := im.store.DeleteWhere(ctx, im.opts.Collection, match)
	if err != nil {
		return errors.Wrapf(err, "clear existing documents for %s", key)
	}
	im.cleared[key] = true
	im.log.Infof("Deleted %d existing documents for %s", n, key)
	return nil
}

func (im *Importer) report(o Outcome) {
	if o.OK() {
		im.log.Infof("Uploaded brochure with ID: %s - Title: %s", o.ID, o.Record.Label)
		return
	}
	im.log.Error("Error uploading brochure "+o.Record.Label, "err", o.Err)
}
