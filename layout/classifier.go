package layout

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by a Classifier for a visual it cannot map.
// The mapper degrades such visuals to a tabular placeholder; it never drops
// them.
var ErrUnsupported = errors.New("unsupported visual")

// A Request describes one worksheet visual to be classified: its mark type,
// its encoding channels, and its filters.
type Request struct {
	MarkType  string
	Encodings map[string]string
	Filters   []Filter
}

// A Result is a successful classification: the target visual type and the
// assignment of fields to the visual's wells.
type Result struct {
	VisualType string
	FieldWells map[string][]string
}

// A Classifier decides the target visual type for a worksheet.  Classify
// returns ErrUnsupported when no target visual fits; any other error is
// treated the same way by the caller.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// WithTimeout bounds every classification call.  A call that outlives the
// deadline yields ErrUnsupported; the late result is discarded.
func WithTimeout(c Classifier, d time.Duration) Classifier {
	return &timeoutClassifier{c: c, timeout: d}
}

type timeoutClassifier struct {
	c       Classifier
	timeout time.Duration
}

func (t *timeoutClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := t.c.Classify(ctx, req)
		ch <- outcome{res, err}
	}()
	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ErrUnsupported
	}
}
