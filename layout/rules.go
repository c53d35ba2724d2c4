package layout

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// visualTypes maps a source mark class to a target visual type.  Mark
// classes absent here have no target counterpart and classify as
// unsupported.
var visualTypes = map[string]string{
	"bar":       "columnChart",
	"line":      "lineChart",
	"area":      "areaChart",
	"pie":       "pieChart",
	"circle":    "scatterChart",
	"shape":     "scatterChart",
	"square":    "matrix",
	"text":      "tableEx",
	"map":       "filledMap",
	"automatic": "columnChart",
}

// ruleClassifier is the built-in Classifier: a mark-class table refined by
// the shape of the encodings.  Classifications are pure functions of the
// request, so results are memoized.
type ruleClassifier struct {
	cache *lru.Cache[string, Result]
}

// NewRuleClassifier returns the default rule-based classifier.
func NewRuleClassifier() Classifier {
	cache, _ := lru.New[string, Result](512)
	return &ruleClassifier{cache: cache}
}

func (rc *ruleClassifier) Classify(_ context.Context, req Request) (Result, error) {
	key := cacheKey(req)
	if res, ok := rc.cache.Get(key); ok {
		return res, nil
	}
	res, err := classify(req)
	if err != nil {
		return Result{}, err
	}
	rc.cache.Add(key, res)
	return res, nil
}

func classify(req Request) (Result, error) {
	typ, ok := visualTypes[strings.ToLower(req.MarkType)]
	if !ok {
		return Result{}, ErrUnsupported
	}
	switch {
	case hasGeoFields(req.Encodings):
		typ = "filledMap"
	case typ == "columnChart" && isDateField(req.Encodings["cols"]):
		// A date on the category axis reads as a trend.
		typ = "lineChart"
	case typ == "tableEx" && len(req.Encodings) == 1 && req.Encodings["text"] != "":
		// A lone text encoding is a single number, not a table.
		typ = "card"
	}
	return Result{VisualType: typ, FieldWells: fieldWells(typ, req.Encodings)}, nil
}

// fieldWells assigns each encoding channel to the well the target visual
// expects.  Unmapped channels land in Tooltips so no field is lost.
func fieldWells(typ string, encodings map[string]string) map[string][]string {
	wells := make(map[string][]string)
	add := func(well, field string) {
		if field != "" {
			wells[well] = append(wells[well], field)
		}
	}
	for _, channel := range sortedChannels(encodings) {
		field := encodings[channel]
		switch channel {
		case "cols", "x":
			if typ == "scatterChart" {
				add("X", field)
			} else {
				add("Category", field)
			}
		case "rows", "y":
			if typ == "scatterChart" {
				add("Y", field)
			} else {
				add("Values", field)
			}
		case "color":
			add("Legend", field)
		case "size":
			add("Size", field)
		case "text", "label":
			add("Values", field)
		case "lod", "detail":
			add("Category", field)
		default:
			add("Tooltips", field)
		}
	}
	for well := range wells {
		wells[well] = dedup(wells[well])
	}
	return wells
}

func hasGeoFields(encodings map[string]string) bool {
	for _, field := range encodings {
		f := strings.ToLower(field)
		if strings.Contains(f, "latitude") || strings.Contains(f, "longitude") {
			return true
		}
	}
	return false
}

func isDateField(field string) bool {
	f := strings.ToLower(field)
	return strings.Contains(f, "date") || strings.Contains(f, "year") ||
		strings.Contains(f, "month") || strings.Contains(f, "quarter")
}

func sortedChannels(encodings map[string]string) []string {
	channels := maps.Keys(encodings)
	slices.Sort(channels)
	return channels
}

func dedup(fields []string) []string {
	seen := make(map[string]bool)
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func cacheKey(req Request) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(req.MarkType))
	for _, channel := range sortedChannels(req.Encodings) {
		b.WriteByte('|')
		b.WriteString(channel)
		b.WriteByte('=')
		b.WriteString(req.Encodings[channel])
	}
	return b.String()
}
