// Package assembler serializes a conversion's outputs into an output
// directory: the tabular model, the report pages, and the issue log.
package assembler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tabxdata/tabx/layout"
	"github.com/tabxdata/tabx/model"
	"github.com/tabxdata/tabx/report"
)

const (
	ModelFile  = "model.json"
	ReportFile = "report.json"
	IssuesFile = "issues.json"
)

// A reportDoc is the serialized page structure.
type reportDoc struct {
	Pages []*layout.Page `json:"pages"`
}

// Write materializes the three artifacts under dir, creating it as needed.
// Writing is all-or-nothing per file; a failed file aborts the assembly.
func Write(dir string, mdl *model.Model, pages []*layout.Page, doc report.Document, logger *zap.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	files := []struct {
		name string
		v    interface{}
	}{
		{ModelFile, mdl},
		{ReportFile, reportDoc{Pages: pages}},
		{IssuesFile, doc},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeJSON(path, f.v); err != nil {
			return fmt.Errorf("assembling %s: %w", f.name, err)
		}
		logger.Info("artifact written", zap.String("path", path))
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
