package report_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabxdata/tabx/report"
)

func TestReport(t *testing.T) {
	r := report.New()
	assert.NotEmpty(t, r.RunID())

	r.Error(report.KindParse, "Superstore", "Calculation_1", errors.New("unexpected end of input"))
	r.Warn(report.KindUnsupported, "Superstore", "Running Total", "approximated with ALLSELECTED")

	issues := r.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, report.SeverityError, issues[0].Severity)
	assert.Equal(t, report.KindParse, issues[0].Kind)
	assert.Equal(t, "Calculation_1", issues[0].Subject)

	doc := r.Document()
	assert.Equal(t, 1, doc.Errors)
	assert.Equal(t, 1, doc.Warnings)
	assert.Equal(t, r.RunID(), doc.RunID)
	assert.False(t, doc.Finished.Before(doc.Started))
}

func TestErrOnlyCountsErrors(t *testing.T) {
	r := report.New()
	r.Warn(report.KindUnsupported, "ds", "f", "note")
	assert.NoError(t, r.Err())

	r.Error(report.KindSemantic, "ds", "g", errors.New("context mismatch"))
	require.Error(t, r.Err())
	assert.Contains(t, r.Err().Error(), "context mismatch")
}

func TestConcurrentAdds(t *testing.T) {
	r := report.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Warn(report.KindUnsupported, "ds", "f", "note")
		}()
	}
	wg.Wait()
	assert.Len(t, r.Issues(), 50)
}
