// Package report accumulates every non-fatal issue of a conversion run
// into one structured document instead of printing ad hoc.
package report

import (
	"errors"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/multierr"
)

type Kind string

const (
	// KindParse marks malformed calculation syntax, localized to one field.
	KindParse Kind = "parse"
	// KindSemantic marks context-mixing violations, unresolved references,
	// and dependency cycles.
	KindSemantic Kind = "semantic"
	// KindModel marks relationship ambiguity or an incompatible blend.
	KindModel Kind = "model-integrity"
	// KindUnsupported marks a construct translated best-effort with a
	// recorded gap.
	KindUnsupported Kind = "unsupported-feature"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Issue struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Msg      string   `json:"message"`
}

// A Report collects issues from concurrent workers.  All methods are safe
// for concurrent use.
type Report struct {
	runID   string
	started time.Time

	mu     sync.Mutex
	issues []Issue
}

func New() *Report {
	return &Report{runID: ksuid.New().String(), started: time.Now()}
}

func (r *Report) RunID() string { return r.runID }

func (r *Report) Add(issue Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, issue)
}

// Error records a field- or table-level failure.  The run continues; the
// subject degrades to a placeholder.
func (r *Report) Error(kind Kind, source, subject string, err error) {
	r.Add(Issue{Kind: kind, Severity: SeverityError, Source: source, Subject: subject, Msg: err.Error()})
}

// Warn records a best-effort translation gap.
func (r *Report) Warn(kind Kind, source, subject, msg string) {
	r.Add(Issue{Kind: kind, Severity: SeverityWarning, Source: source, Subject: subject, Msg: msg})
}

// Issues returns a snapshot of everything recorded so far.
func (r *Report) Issues() []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

// Err combines every error-severity issue into one error, nil when the run
// was clean of errors.
func (r *Report) Err() error {
	var err error
	for _, issue := range r.Issues() {
		if issue.Severity == SeverityError {
			err = multierr.Append(err, errors.New(issue.Msg))
		}
	}
	return err
}

// A Document is the serializable form of a finished report.
type Document struct {
	RunID    string    `json:"runId"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Errors   int       `json:"errors"`
	Warnings int       `json:"warnings"`
	Issues   []Issue   `json:"issues"`
}

// Document freezes the report for serialization.
func (r *Report) Document() Document {
	issues := r.Issues()
	doc := Document{
		RunID:    r.runID,
		Started:  r.started,
		Finished: time.Now(),
		Issues:   issues,
	}
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			doc.Errors++
		} else {
			doc.Warnings++
		}
	}
	return doc
}
