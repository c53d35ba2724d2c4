package assembler_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tabxdata/tabx/assembler"
	"github.com/tabxdata/tabx/layout"
	"github.com/tabxdata/tabx/model"
	"github.com/tabxdata/tabx/report"
)

func TestWriteArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	mdl := &model.Model{
		Tables: []model.Table{{Name: "Orders"}},
		Relationships: []*model.Relationship{
			{FromTable: "Orders", FromColumn: "Customer ID", ToTable: "Customers",
				ToColumn: "Customer ID", Cardinality: model.ManyToOne,
				CrossFilter: model.FilterSingle, Active: true},
		},
	}
	pages := []*layout.Page{{Name: "Overview", Width: 1280, Height: 720}}
	doc := report.New().Document()

	require.NoError(t, assembler.Write(dir, mdl, pages, doc, zap.NewNop()))

	var gotModel model.Model
	decode(t, filepath.Join(dir, assembler.ModelFile), &gotModel)
	require.Len(t, gotModel.Tables, 1)
	assert.Equal(t, "Orders", gotModel.Tables[0].Name)
	require.Len(t, gotModel.Relationships, 1)
	assert.True(t, gotModel.Relationships[0].Active)

	var gotReport struct {
		Pages []*layout.Page `json:"pages"`
	}
	decode(t, filepath.Join(dir, assembler.ReportFile), &gotReport)
	require.Len(t, gotReport.Pages, 1)
	assert.Equal(t, "Overview", gotReport.Pages[0].Name)

	var gotIssues report.Document
	decode(t, filepath.Join(dir, assembler.IssuesFile), &gotIssues)
	assert.Equal(t, doc.RunID, gotIssues.RunID)
}

func decode(t *testing.T, path string, v interface{}) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}
