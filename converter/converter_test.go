package converter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabxdata/tabx/compiler/dax"
	"github.com/tabxdata/tabx/converter"
	"github.com/tabxdata/tabx/report"
	"github.com/tabxdata/tabx/twb"
)

func sampleWorkbook() *twb.Workbook {
	return &twb.Workbook{
		Datasources: []twb.Datasource{{
			Name:       "federated.1abc",
			Caption:    "Superstore",
			Connection: &twb.Connection{Class: "postgres", Server: "db", DBName: "sales"},
			Columns: []twb.Column{
				{Name: "[Sales]", Datatype: "real", Role: "measure"},
				{Name: "[Profit]", Datatype: "real", Role: "measure"},
				{Name: "[Region]", Datatype: "string", Role: "dimension"},
				{Name: "[Margin]", Datatype: "real", Role: "measure",
					Calculation: &twb.Calculation{Formula: "SUM([Profit]) / SUM([Sales])"}},
				{Name: "[Discounted]", Datatype: "real", Role: "measure",
					Calculation: &twb.Calculation{Formula: "[Sales] * 0.9"}},
				{Name: "[Broken]", Datatype: "real", Role: "measure",
					Calculation: &twb.Calculation{Formula: "SUM([Sales]"}},
				{Name: "[Loop A]", Datatype: "real", Role: "measure",
					Calculation: &twb.Calculation{Formula: "[Loop B] + 1"}},
				{Name: "[Loop B]", Datatype: "real", Role: "measure",
					Calculation: &twb.Calculation{Formula: "[Loop A] + 1"}},
			},
		}},
		Worksheets: []twb.Worksheet{{
			Name: "Sales by Region",
			Cols: "[federated.1abc].[none:Region:nk]",
			Rows: "[federated.1abc].[sum:Sales:qk]",
			Panes: []twb.Pane{{Mark: &twb.Mark{Class: "bar"}}},
		}},
		Dashboards: []twb.Dashboard{{
			Name:     "Overview",
			MaxWidth: 1280,
			Zones: []twb.Zone{{
				Type: "layout-basic", W: 1280, H: 720,
				Zones: []twb.Zone{{Name: "Sales by Region", X: 40, Y: 40, W: 600, H: 400}},
			}},
		}},
	}
}

func measureNames(targets []*dax.Target) []string {
	var names []string
	for _, t := range targets {
		names = append(names, t.Name)
	}
	return names
}

func TestRun(t *testing.T) {
	res, err := converter.Run(context.Background(), sampleWorkbook(), converter.Config{})
	require.NoError(t, err)

	names := measureNames(res.Model.Measures)
	assert.Contains(t, names, "Margin")
	assert.Contains(t, names, "Broken_REVIEW")
	assert.Contains(t, names, "Loop A_REVIEW")
	assert.Contains(t, names, "Loop B_REVIEW")

	cols := measureNames(res.Model.CalculatedColumns)
	assert.Equal(t, []string{"Discounted"}, cols)

	require.Len(t, res.Pages, 1)
	require.Len(t, res.Pages[0].Visuals, 1)
	v := res.Pages[0].Visuals[0]
	assert.Equal(t, "columnChart", v.Type)
	assert.Equal(t, 40.0, v.Rect.X)

	var parseErrs, cycleErrs int
	for _, issue := range res.Report.Issues() {
		switch issue.Kind {
		case report.KindParse:
			parseErrs++
		case report.KindSemantic:
			cycleErrs++
		}
	}
	assert.Equal(t, 1, parseErrs)
	assert.Equal(t, 1, cycleErrs)
}

func TestReviewMeasuresCarryErrorText(t *testing.T) {
	wb := sampleWorkbook()
	wb.Datasources[0].Columns = append(wb.Datasources[0].Columns,
		twb.Column{Name: "[Mixed]", Datatype: "real", Role: "measure",
			Calculation: &twb.Calculation{Formula: "SUM([Sales]) + [Profit]"}})
	res, err := converter.Run(context.Background(), wb, converter.Config{})
	require.NoError(t, err)

	byName := make(map[string]*dax.Target)
	for _, m := range res.Model.Measures {
		byName[m.Name] = m
	}

	mixed := byName["Mixed_REVIEW"]
	require.NotNil(t, mixed)
	assert.Contains(t, mixed.Expression, "context mismatch")
	assert.Contains(t, mixed.Expression, "SUM([Sales]) + [Profit]")

	loop := byName["Loop A_REVIEW"]
	require.NotNil(t, loop)
	assert.Contains(t, loop.Expression, "dependency cycle")
	assert.Contains(t, loop.Expression, "[Loop B]")
}

func TestRunFailsWithoutDatasources(t *testing.T) {
	_, err := converter.Run(context.Background(), &twb.Workbook{}, converter.Config{})
	assert.ErrorIs(t, err, converter.ErrNoDatasources)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := converter.Run(ctx, sampleWorkbook(), converter.Config{})
	assert.Error(t, err)
}
