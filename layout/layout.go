// Package layout flattens nested dashboard zone trees into absolutely
// positioned visuals on a fixed-size report canvas and classifies each
// visual into a target visual type with field-well bindings.
package layout

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabxdata/tabx/twb"
	"go.uber.org/zap"
)

// Target canvas size in report units.
const (
	CanvasWidth  = 1280.0
	CanvasHeight = 720.0
)

// Rect is absolute canvas geometry.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

type FilterKind string

const (
	FilterIn           FilterKind = "In"
	FilterBetween      FilterKind = "Between"
	FilterRelativeDate FilterKind = "RelativeDate"
)

type Filter struct {
	Field  string     `json:"field"`
	Kind   FilterKind `json:"kind"`
	Values []string   `json:"values,omitempty"`
}

// A Visual is one flattened dashboard element.  Unsupported notes mark
// elements that degraded to a placeholder type.
type Visual struct {
	Name        string              `json:"name"`
	Worksheet   string              `json:"worksheet,omitempty"`
	Type        string              `json:"visualType"`
	Rect        Rect                `json:"position"`
	ZOrder      int                 `json:"z"`
	FieldWells  map[string][]string `json:"fieldWells,omitempty"`
	Filters     []Filter            `json:"filters,omitempty"`
	Unsupported []string            `json:"unsupported,omitempty"`
}

// A Page is one converted dashboard.
type Page struct {
	Name    string    `json:"name"`
	Width   float64   `json:"width"`
	Height  float64   `json:"height"`
	Visuals []*Visual `json:"visuals"`
}

// A Mapper flattens dashboards.  It is safe for concurrent use; the
// classifier is the only dependency it shares across calls.
type Mapper struct {
	classifier Classifier
	logger     *zap.Logger
}

func NewMapper(c Classifier, logger *zap.Logger) *Mapper {
	return &Mapper{classifier: c, logger: logger}
}

// MapDashboard flattens one dashboard into a page.  Returned warnings
// describe visuals that degraded; the page itself always contains every
// element of the source dashboard.
func (m *Mapper) MapDashboard(ctx context.Context, d *twb.Dashboard, sheets map[string]*twb.Worksheet) (*Page, []string) {
	f := &flattener{
		Mapper: m,
		ctx:    ctx,
		sheets: sheets,
		page:   &Page{Name: d.Name, Width: CanvasWidth, Height: CanvasHeight},
		scale:  scaleFor(d),
	}
	for _, z := range d.Zones {
		f.walk(z, 0, 0)
	}
	return f.page, f.warnings
}

// scaleFor computes the dashboard's single canvas scale factor from the
// ratio of source width to target width.
func scaleFor(d *twb.Dashboard) float64 {
	if d.MaxWidth > 0 {
		return CanvasWidth / float64(d.MaxWidth)
	}
	return 1.0
}

type flattener struct {
	*Mapper
	ctx      context.Context
	sheets   map[string]*twb.Worksheet
	page     *Page
	scale    float64
	warnings []string
}

// walk accumulates offsets down the zone tree.  originX and originY are the
// parent's absolute position in source units; scaling happens once, when a
// leaf is placed.
func (f *flattener) walk(z twb.Zone, originX, originY float64) {
	absX := originX + z.X
	absY := originY + z.Y
	if ws, ok := f.sheets[z.Name]; ok {
		f.place(ws, rect(absX, absY, z.W, z.H, f.scale))
		return
	}
	if len(z.Zones) == 0 {
		if strings.EqualFold(z.Type, "text") {
			f.add(&Visual{Name: z.Name, Type: "textbox", Rect: rect(absX, absY, z.W, z.H, f.scale)})
		}
		return
	}
	for _, child := range z.Zones {
		f.walk(child, absX, absY)
	}
}

func (f *flattener) place(ws *twb.Worksheet, r Rect) {
	filters := mapFilters(ws.Filters)
	req := Request{
		MarkType:  ws.MarkType(),
		Encodings: encodings(ws),
		Filters:   filters,
	}
	v := &Visual{
		Name:      ws.Name,
		Worksheet: ws.Name,
		Rect:      r,
		Filters:   filters,
	}
	res, err := f.classifier.Classify(f.ctx, req)
	if err != nil {
		// Degrade to a table over the same fields rather than dropping
		// the element.
		v.Type = "tableEx"
		v.FieldWells = map[string][]string{"Values": allFields(req.Encodings)}
		note := fmt.Sprintf("worksheet %q: mark type %q has no direct visual equivalent, rendered as a table",
			ws.Name, req.MarkType)
		v.Unsupported = append(v.Unsupported, note)
		f.warnings = append(f.warnings, note)
		f.logger.Warn("visual degraded", zap.String("worksheet", ws.Name), zap.String("mark", req.MarkType))
	} else {
		v.Type = res.VisualType
		v.FieldWells = res.FieldWells
	}
	f.add(v)
}

func (f *flattener) add(v *Visual) {
	v.ZOrder = len(f.page.Visuals)
	f.page.Visuals = append(f.page.Visuals, v)
}

func rect(x, y, w, h, scale float64) Rect {
	return Rect{X: x * scale, Y: y * scale, W: w * scale, H: h * scale}
}

// encodings merges the pane encoding channels with the worksheet's shelf
// fields so axis assignments survive classification.
func encodings(ws *twb.Worksheet) map[string]string {
	enc := make(map[string]string)
	for channel, field := range ws.EncodingMap() {
		enc[channel] = CleanField(field)
	}
	if f := CleanField(ws.Cols); f != "" {
		enc["cols"] = f
	}
	if f := CleanField(ws.Rows); f != "" {
		enc["rows"] = f
	}
	return enc
}

func mapFilters(filters []twb.Filter) []Filter {
	var out []Filter
	for _, fl := range filters {
		mapped := Filter{Field: CleanField(fl.Field), Kind: filterKind(fl.Type)}
		for _, v := range fl.Values {
			if text := strings.TrimSpace(v.Text); text != "" {
				mapped.Values = append(mapped.Values, text)
			}
		}
		out = append(out, mapped)
	}
	return out
}

func filterKind(typ string) FilterKind {
	switch strings.ToLower(typ) {
	case "quantitative":
		return FilterBetween
	case "relative-date", "relative_date":
		return FilterRelativeDate
	}
	return FilterIn
}

func allFields(encodings map[string]string) []string {
	var fields []string
	for _, channel := range sortedChannels(encodings) {
		fields = append(fields, encodings[channel])
	}
	return dedup(fields)
}

// CleanField reduces a shelf reference like
// "[federated.abc].[sum:Sales:qk]" to the bare field name.  Aggregation
// prefixes and type suffixes are stripped; the last bracketed segment wins.
func CleanField(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if i := strings.LastIndex(ref, "["); i >= 0 {
		ref = ref[i+1:]
	}
	ref = strings.TrimSuffix(ref, "]")
	if parts := strings.Split(ref, ":"); len(parts) == 3 {
		return parts[1]
	}
	return ref
}
