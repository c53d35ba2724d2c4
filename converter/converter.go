// Package converter drives a full workbook conversion: schemas, dependency
// ordering, per-field translation, data-model mapping, and dashboard
// flattening, with independent units translated in parallel.
package converter

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tabxdata/tabx/compiler/ast"
	"github.com/tabxdata/tabx/compiler/dax"
	"github.com/tabxdata/tabx/compiler/parser"
	"github.com/tabxdata/tabx/compiler/semantic"
	"github.com/tabxdata/tabx/layout"
	"github.com/tabxdata/tabx/model"
	"github.com/tabxdata/tabx/report"
	"github.com/tabxdata/tabx/schema"
	"github.com/tabxdata/tabx/twb"
)

// ErrNoDatasources is the one fatal outcome: a workbook from which no
// schema can be built at all.
var ErrNoDatasources = errors.New("workbook contains no usable data source")

type Config struct {
	// FuncMap is the immutable function-mapping table handed to emitters.
	FuncMap dax.FuncMap
	// Classifier decides visual types; nil selects the built-in rules.
	Classifier layout.Classifier
	// ClassifyTimeout bounds each classifier call.
	ClassifyTimeout time.Duration
	// Parallelism caps concurrent field and dashboard translations.
	Parallelism int
	Logger      *zap.Logger
}

func (c *Config) setDefaults() {
	if c.FuncMap == nil {
		c.FuncMap = dax.Default()
	}
	if c.Classifier == nil {
		c.Classifier = layout.NewRuleClassifier()
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = 2 * time.Second
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.GOMAXPROCS(0)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// A Result is everything a run produced.
type Result struct {
	Model  *model.Model
	Pages  []*layout.Page
	Report *report.Report
}

// Run converts a workbook.  Individual fields, visuals, and relationships
// degrade locally and are recorded on the report; Run fails outright only
// when no data source yields a schema or the context is canceled.
func Run(ctx context.Context, wb *twb.Workbook, cfg Config) (*Result, error) {
	cfg.setDefaults()
	if len(wb.Datasources) == 0 {
		return nil, ErrNoDatasources
	}
	c := &converter{cfg: cfg, rep: report.New()}
	cfg.Logger.Info("conversion started", zap.String("run", c.rep.RunID()),
		zap.Int("datasources", len(wb.Datasources)), zap.Int("dashboards", len(wb.Dashboards)))

	var schemas []*schema.Schema
	for i := range wb.Datasources {
		schemas = append(schemas, schema.Build(&wb.Datasources[i], cfg.Logger))
	}
	blends := schema.DetectBlends(schemas)

	mdl, integrity := model.Build(schemas, blends, cfg.Logger)
	for _, err := range integrity {
		c.rep.Error(report.KindModel, strings.Join(err.Tables, ","), "", err)
	}

	for _, sch := range schemas {
		measures, columns, err := c.translate(ctx, sch)
		if err != nil {
			return nil, err
		}
		mdl.Measures = append(mdl.Measures, measures...)
		mdl.CalculatedColumns = append(mdl.CalculatedColumns, columns...)
	}

	pages, err := c.dashboards(ctx, wb)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("conversion finished",
		zap.Int("measures", len(mdl.Measures)),
		zap.Int("columns", len(mdl.CalculatedColumns)),
		zap.Int("pages", len(pages)),
		zap.Int("issues", len(c.rep.Issues())))
	return &Result{Model: mdl, Pages: pages, Report: c.rep}, nil
}

type converter struct {
	cfg Config
	rep *report.Report
}

// translate parses, orders, resolves, and emits every calculated field of
// one data source.  Fields with no dependency relation resolve in parallel
// waves; a field is published only once fully translated.
func (c *converter) translate(ctx context.Context, sch *schema.Schema) (measures, columns []*dax.Target, err error) {
	base := sch.Name
	if len(sch.Tables) > 0 {
		base = sch.Tables[0].Name
	}
	specs := make(map[string]schema.CalcSpec, len(sch.Calcs))
	parsed := make(map[string]ast.Expr)
	for _, spec := range sch.Calcs {
		specs[spec.Name] = spec
		e, perr := parser.Parse(spec.Formula)
		if perr != nil {
			c.rep.Error(report.KindParse, sch.Name, spec.Name, perr)
			measures = append(measures, dax.ReviewMeasure(spec, base, perr))
			continue
		}
		parsed[spec.Name] = e
	}

	order, oerr := semantic.Order(sch, parsed)
	if oerr != nil {
		// Cycle members and their dependents are missing from the order;
		// each degrades to a review measure while the acyclic remainder
		// proceeds.
		byMember := make(map[string]error)
		for _, e := range multierr.Errors(oerr) {
			c.rep.Error(report.KindSemantic, sch.Name, "", e)
			var cerr *semantic.CycleError
			if errors.As(e, &cerr) {
				for _, m := range cerr.Members {
					byMember[m] = cerr
				}
			}
		}
		inOrder := make(map[string]bool, len(order))
		for _, name := range order {
			inOrder[name] = true
		}
		for name := range parsed {
			if !inOrder[name] {
				// A cycle member carries its own cycle; a downstream field
				// carries the combined error.
				cause := byMember[name]
				if cause == nil {
					cause = oerr
				}
				measures = append(measures, dax.ReviewMeasure(specs[name], base, cause))
				delete(parsed, name)
			}
		}
	}

	upstream := semantic.Upstream{}
	resolved := make(map[string]*semantic.Resolved)
	for _, wave := range waves(sch, parsed, order) {
		results := make([]*semantic.Resolved, len(wave))
		failures := make([]error, len(wave))
		g, wctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Parallelism)
		for i, name := range wave {
			i, name := i, name
			g.Go(func() error {
				if wctx.Err() != nil {
					return wctx.Err()
				}
				res, rerr := semantic.Resolve(specs[name], parsed[name], sch, upstream)
				if rerr != nil {
					c.rep.Error(report.KindSemantic, sch.Name, name, rerr)
					failures[i] = rerr
					return nil
				}
				results[i] = res
				return nil
			})
		}
		if werr := g.Wait(); werr != nil {
			return nil, nil, werr
		}
		for i, name := range wave {
			if results[i] == nil {
				ferr := failures[i]
				if ferr == nil {
					ferr = errors.New("semantic resolution failed")
				}
				measures = append(measures, dax.ReviewMeasure(specs[name], base, ferr))
				continue
			}
			resolved[name] = results[i]
			upstream.Add(results[i])
		}
	}

	em := dax.NewEmitter(c.cfg.FuncMap, sch, upstream)
	targets := make([]*dax.Target, len(order))
	g, ectx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)
	for i, name := range order {
		i, name := i, name
		res := resolved[name]
		if res == nil {
			continue
		}
		g.Go(func() error {
			if ectx.Err() != nil {
				return ectx.Err()
			}
			targets[i] = em.Emit(res)
			return nil
		})
	}
	if werr := g.Wait(); werr != nil {
		return nil, nil, werr
	}
	for _, t := range targets {
		if t == nil {
			continue
		}
		for _, gap := range t.Unsupported {
			c.rep.Warn(report.KindUnsupported, sch.Name, t.Name, gap)
		}
		if t.Class == dax.ClassMeasure {
			measures = append(measures, t)
		} else {
			columns = append(columns, t)
		}
	}
	return measures, columns, nil
}

// waves groups the ordered fields into dependency waves: every field in a
// wave depends only on fields of earlier waves, so a wave resolves in
// parallel against a frozen upstream set.
func waves(sch *schema.Schema, parsed map[string]ast.Expr, order []string) [][]string {
	canonical := make(map[string]string)
	for i := range sch.Calcs {
		spec := &sch.Calcs[i]
		canonical[strings.ToLower(spec.Name)] = spec.Name
		if spec.Caption != "" {
			canonical[strings.ToLower(spec.Caption)] = spec.Name
		}
	}
	depth := make(map[string]int, len(order))
	var out [][]string
	for _, name := range order {
		e, ok := parsed[name]
		if !ok {
			continue
		}
		d := 0
		for _, ref := range ast.Fields(e) {
			target, isCalc := canonical[strings.ToLower(ref)]
			if !isCalc || target == name {
				continue
			}
			if td, done := depth[target]; done && td+1 > d {
				d = td + 1
			}
		}
		depth[name] = d
		for len(out) <= d {
			out = append(out, nil)
		}
		out[d] = append(out[d], name)
	}
	return out
}

// dashboards flattens every dashboard in parallel.  A canceled page is
// discarded wholesale, never merged half-built.
func (c *converter) dashboards(ctx context.Context, wb *twb.Workbook) ([]*layout.Page, error) {
	sheets := make(map[string]*twb.Worksheet, len(wb.Worksheets))
	for i := range wb.Worksheets {
		sheets[wb.Worksheets[i].Name] = &wb.Worksheets[i]
	}
	mapper := layout.NewMapper(
		layout.WithTimeout(c.cfg.Classifier, c.cfg.ClassifyTimeout), c.cfg.Logger)
	pages := make([]*layout.Page, len(wb.Dashboards))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)
	for i := range wb.Dashboards {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			d := &wb.Dashboards[i]
			page, warnings := mapper.MapDashboard(gctx, d, sheets)
			mu.Lock()
			pages[i] = page
			for _, warn := range warnings {
				c.rep.Warn(report.KindUnsupported, d.Name, "", warn)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := pages[:0]
	for _, p := range pages {
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}
