package layout_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tabxdata/tabx/layout"
	"github.com/tabxdata/tabx/twb"
)

func barSheet(name string) twb.Worksheet {
	return twb.Worksheet{
		Name: name,
		Cols: "[ds].[none:Region:nk]",
		Rows: "[ds].[sum:Sales:qk]",
		Panes: []twb.Pane{{
			Mark: &twb.Mark{Class: "bar"},
			Encodings: []twb.Encoding{
				{Type: "color", Field: "[ds].[none:Category:nk]"},
			},
		}},
	}
}

func sheetsOf(sheets ...twb.Worksheet) map[string]*twb.Worksheet {
	out := make(map[string]*twb.Worksheet)
	for i := range sheets {
		out[sheets[i].Name] = &sheets[i]
	}
	return out
}

func TestOffsetAccumulation(t *testing.T) {
	d := &twb.Dashboard{
		Name:     "Overview",
		MaxWidth: 1280,
		Zones: []twb.Zone{{
			Type: "layout-basic", X: 100, Y: 100, W: 600, H: 400,
			Zones: []twb.Zone{{Name: "Sheet 1", X: 10, Y: 10, W: 200, H: 100}},
		}},
	}
	m := layout.NewMapper(layout.NewRuleClassifier(), zap.NewNop())
	page, warnings := m.MapDashboard(context.Background(), d, sheetsOf(barSheet("Sheet 1")))
	assert.Empty(t, warnings)
	require.Len(t, page.Visuals, 1)
	v := page.Visuals[0]
	assert.Equal(t, 110.0, v.Rect.X)
	assert.Equal(t, 110.0, v.Rect.Y)
	assert.Equal(t, 200.0, v.Rect.W)
}

func TestCanvasScale(t *testing.T) {
	d := &twb.Dashboard{
		Name:     "Wide",
		MaxWidth: 2560,
		Zones:    []twb.Zone{{Name: "Sheet 1", X: 200, Y: 100, W: 400, H: 200}},
	}
	m := layout.NewMapper(layout.NewRuleClassifier(), zap.NewNop())
	page, _ := m.MapDashboard(context.Background(), d, sheetsOf(barSheet("Sheet 1")))
	require.Len(t, page.Visuals, 1)
	v := page.Visuals[0]
	assert.Equal(t, 100.0, v.Rect.X)
	assert.Equal(t, 50.0, v.Rect.Y)
	assert.Equal(t, 200.0, v.Rect.W)
	assert.Equal(t, layout.CanvasWidth, page.Width)
	assert.Equal(t, layout.CanvasHeight, page.Height)
}

func TestClassifiedVisual(t *testing.T) {
	d := &twb.Dashboard{
		Name:  "One",
		Zones: []twb.Zone{{Name: "Sheet 1", W: 100, H: 100}},
	}
	m := layout.NewMapper(layout.NewRuleClassifier(), zap.NewNop())
	page, warnings := m.MapDashboard(context.Background(), d, sheetsOf(barSheet("Sheet 1")))
	assert.Empty(t, warnings)
	require.Len(t, page.Visuals, 1)
	v := page.Visuals[0]
	assert.Equal(t, "columnChart", v.Type)
	assert.Equal(t, []string{"Region"}, v.FieldWells["Category"])
	assert.Equal(t, []string{"Sales"}, v.FieldWells["Values"])
	assert.Equal(t, []string{"Category"}, v.FieldWells["Legend"])
}

func TestUnsupportedDegradesToTable(t *testing.T) {
	gantt := twb.Worksheet{
		Name:  "Timeline",
		Cols:  "[ds].[none:Start:nk]",
		Panes: []twb.Pane{{Mark: &twb.Mark{Class: "gantt"}}},
	}
	d := &twb.Dashboard{Name: "D", Zones: []twb.Zone{{Name: "Timeline", W: 100, H: 100}}}
	m := layout.NewMapper(layout.NewRuleClassifier(), zap.NewNop())
	page, warnings := m.MapDashboard(context.Background(), d, sheetsOf(gantt))
	require.Len(t, page.Visuals, 1)
	v := page.Visuals[0]
	assert.Equal(t, "tableEx", v.Type)
	assert.Equal(t, []string{"Start"}, v.FieldWells["Values"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Timeline")
	assert.Len(t, v.Unsupported, 1)
}

func TestFilterMapping(t *testing.T) {
	ws := barSheet("Sheet 1")
	ws.Filters = []twb.Filter{
		{Field: "[ds].[none:Region:nk]", Type: "categorical", Values: []twb.FilterValue{{Text: "East"}, {Text: "West"}}},
		{Field: "[ds].[sum:Sales:qk]", Type: "quantitative"},
		{Field: "[ds].[none:Order Date:qk]", Type: "relative-date"},
	}
	d := &twb.Dashboard{Name: "D", Zones: []twb.Zone{{Name: "Sheet 1", W: 10, H: 10}}}
	m := layout.NewMapper(layout.NewRuleClassifier(), zap.NewNop())
	page, _ := m.MapDashboard(context.Background(), d, sheetsOf(ws))
	require.Len(t, page.Visuals, 1)
	filters := page.Visuals[0].Filters
	require.Len(t, filters, 3)
	assert.Equal(t, layout.FilterIn, filters[0].Kind)
	assert.Equal(t, "Region", filters[0].Field)
	assert.Equal(t, []string{"East", "West"}, filters[0].Values)
	assert.Equal(t, layout.FilterBetween, filters[1].Kind)
	assert.Equal(t, layout.FilterRelativeDate, filters[2].Kind)
}

func TestZOrderFollowsTraversal(t *testing.T) {
	d := &twb.Dashboard{Name: "D", Zones: []twb.Zone{
		{Name: "Sheet 1", W: 10, H: 10},
		{Name: "Sheet 2", W: 10, H: 10},
	}}
	m := layout.NewMapper(layout.NewRuleClassifier(), zap.NewNop())
	page, _ := m.MapDashboard(context.Background(), d, sheetsOf(barSheet("Sheet 1"), barSheet("Sheet 2")))
	require.Len(t, page.Visuals, 2)
	assert.Equal(t, 0, page.Visuals[0].ZOrder)
	assert.Equal(t, 1, page.Visuals[1].ZOrder)
}

func TestRuleClassifier(t *testing.T) {
	rc := layout.NewRuleClassifier()
	ctx := context.Background()

	res, err := rc.Classify(ctx, layout.Request{MarkType: "line", Encodings: map[string]string{"cols": "Order Date"}})
	require.NoError(t, err)
	assert.Equal(t, "lineChart", res.VisualType)

	// A date on the category axis turns a default column chart into a trend.
	res, err = rc.Classify(ctx, layout.Request{MarkType: "automatic", Encodings: map[string]string{"cols": "Order Date", "rows": "Sales"}})
	require.NoError(t, err)
	assert.Equal(t, "lineChart", res.VisualType)

	res, err = rc.Classify(ctx, layout.Request{MarkType: "circle", Encodings: map[string]string{"cols": "Longitude", "rows": "Latitude"}})
	require.NoError(t, err)
	assert.Equal(t, "filledMap", res.VisualType)

	res, err = rc.Classify(ctx, layout.Request{MarkType: "text", Encodings: map[string]string{"text": "Sales"}})
	require.NoError(t, err)
	assert.Equal(t, "card", res.VisualType)

	_, err = rc.Classify(ctx, layout.Request{MarkType: "gantt"})
	assert.ErrorIs(t, err, layout.ErrUnsupported)
}

type slowClassifier struct{ delay time.Duration }

func (s slowClassifier) Classify(ctx context.Context, req layout.Request) (layout.Result, error) {
	select {
	case <-time.After(s.delay):
		return layout.Result{VisualType: "columnChart"}, nil
	case <-ctx.Done():
		return layout.Result{}, ctx.Err()
	}
}

func TestClassifierTimeout(t *testing.T) {
	c := layout.WithTimeout(slowClassifier{delay: time.Second}, 10*time.Millisecond)
	_, err := c.Classify(context.Background(), layout.Request{MarkType: "bar"})
	assert.ErrorIs(t, err, layout.ErrUnsupported)

	c = layout.WithTimeout(slowClassifier{delay: 0}, time.Second)
	res, err := c.Classify(context.Background(), layout.Request{MarkType: "bar"})
	require.NoError(t, err)
	assert.Equal(t, "columnChart", res.VisualType)
}

func TestCleanField(t *testing.T) {
	cases := map[string]string{
		"[federated.abc].[sum:Sales:qk]": "Sales",
		"[none:Region:nk]":               "Region",
		"[Sales]":                        "Sales",
		"Sales":                          "Sales",
		"":                               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, layout.CleanField(in), in)
	}
}
