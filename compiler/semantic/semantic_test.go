package semantic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/tabxdata/tabx/compiler/ast"
	"github.com/tabxdata/tabx/compiler/parser"
	"github.com/tabxdata/tabx/compiler/semantic"
	"github.com/tabxdata/tabx/schema"
)

func testSchema(calcs ...schema.CalcSpec) *schema.Schema {
	return &schema.Schema{
		Name: "Superstore",
		Tables: []*schema.Table{{
			Name: "Orders",
			Columns: []schema.Column{
				{Name: "Sales", Type: schema.TypeNumber, Role: schema.RoleMeasure},
				{Name: "Profit", Type: schema.TypeNumber, Role: schema.RoleMeasure},
				{Name: "Quantity", Type: schema.TypeInteger, Role: schema.RoleMeasure},
				{Name: "Region", Type: schema.TypeString, Role: schema.RoleDimension},
				{Name: "Order Date", Type: schema.TypeDate, Role: schema.RoleDimension},
			},
		}},
		Calcs: calcs,
	}
}

func resolve(t *testing.T, src string) (*semantic.Resolved, error) {
	t.Helper()
	e, err := parser.Parse(src)
	require.NoError(t, err)
	spec := schema.CalcSpec{Name: "Calculation_1", Formula: src}
	return semantic.Resolve(spec, e, testSchema(), semantic.Upstream{})
}

func TestAggregateRatio(t *testing.T) {
	res, err := resolve(t, "SUM([Sales]) / SUM([Profit])")
	require.NoError(t, err)
	assert.Equal(t, semantic.ContextAggregate, res.Context().Kind)
	assert.Equal(t, schema.TypeNumber, res.Type())
	assert.ElementsMatch(t, []string{"Sales", "Profit"}, res.Root().Deps)
}

func TestRowExpression(t *testing.T) {
	res, err := resolve(t, "[Sales] * 0.9")
	require.NoError(t, err)
	assert.Equal(t, semantic.ContextRow, res.Context().Kind)
	assert.False(t, res.Context().Aggregated())
}

func TestContextMismatch(t *testing.T) {
	_, err := resolve(t, "SUM([Sales]) + [Profit]")
	require.Error(t, err)
	var serr *semantic.Error
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Msg, "context mismatch")
}

func TestConstantsMixFreely(t *testing.T) {
	res, err := resolve(t, "SUM([Sales]) * 1.1 + 5")
	require.NoError(t, err)
	assert.Equal(t, semantic.ContextAggregate, res.Context().Kind)
}

func TestNestedAggregateRejected(t *testing.T) {
	_, err := resolve(t, "SUM(AVG([Sales]))")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already aggregated")
}

func TestLODScope(t *testing.T) {
	res, err := resolve(t, "{FIXED [Region] : SUM([Sales])}")
	require.NoError(t, err)
	assert.Equal(t, semantic.ContextLOD, res.Context().Kind)
	assert.Equal(t, []string{"Region"}, res.Context().Scope)
	assert.True(t, res.Context().Aggregated())
}

func TestLODScopeRequiresDimensions(t *testing.T) {
	_, err := resolve(t, "{FIXED [Sales] : SUM([Profit])}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a measure")
}

func TestLODInnerMustAggregate(t *testing.T) {
	_, err := resolve(t, "{FIXED [Region] : [Sales]}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregated inner expression")
}

func TestUnknownReferenceSuggestion(t *testing.T) {
	_, err := resolve(t, "[Salez] + 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown reference")
	assert.Contains(t, err.Error(), "Sales")
}

func TestConditionMustBeBoolean(t *testing.T) {
	_, err := resolve(t, "IF [Sales] THEN 1 ELSE 0 END")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boolean")
}

func TestConditionalType(t *testing.T) {
	res, err := resolve(t, "IF [Sales] > 100 THEN 'big' ELSE 'small' END")
	require.NoError(t, err)
	assert.Equal(t, schema.TypeString, res.Type())
	assert.Equal(t, semantic.ContextRow, res.Context().Kind)
}

func TestTwoArgumentMinMaxAreRowLevel(t *testing.T) {
	res, err := resolve(t, "MIN([Sales], [Profit]) + [Quantity]")
	require.NoError(t, err)
	assert.Equal(t, semantic.ContextRow, res.Context().Kind)

	res, err = resolve(t, "MIN([Sales])")
	require.NoError(t, err)
	assert.Equal(t, semantic.ContextAggregate, res.Context().Kind)
}

func TestSearchedCaseConditionMustBeBoolean(t *testing.T) {
	_, err := resolve(t, "CASE WHEN [Sales] THEN 1 ELSE 0 END")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boolean")

	_, err = resolve(t, "CASE [Region] WHEN 'East' THEN 1 ELSE 0 END")
	assert.NoError(t, err)
}

func TestTableCalcFlag(t *testing.T) {
	res, err := resolve(t, "RUNNING_SUM(SUM([Sales]))")
	require.NoError(t, err)
	assert.True(t, res.Root().TableCalc)
	assert.Equal(t, semantic.ContextAggregate, res.Context().Kind)
}

func TestUpstreamMeasureReference(t *testing.T) {
	sch := testSchema(
		schema.CalcSpec{Name: "Total Sales", Formula: "SUM([Sales])"},
	)
	e, err := parser.Parse("SUM([Sales])")
	require.NoError(t, err)
	upstream := semantic.Upstream{}
	base, err := semantic.Resolve(sch.Calcs[0], e, sch, upstream)
	require.NoError(t, err)
	upstream.Add(base)

	e, err = parser.Parse("[Total Sales] / SUM([Profit])")
	require.NoError(t, err)
	res, err := semantic.Resolve(schema.CalcSpec{Name: "Margin"}, e, sch, upstream)
	require.NoError(t, err)
	assert.Equal(t, semantic.ContextAggregate, res.Context().Kind)
	assert.Contains(t, res.Root().Deps, "Total Sales")
}

func parseAll(t *testing.T, specs map[string]string) map[string]ast.Expr {
	t.Helper()
	parsed := make(map[string]ast.Expr, len(specs))
	for name, src := range specs {
		e, err := parser.Parse(src)
		require.NoError(t, err, name)
		parsed[name] = e
	}
	return parsed
}

func TestDependencyOrder(t *testing.T) {
	sch := testSchema(
		schema.CalcSpec{Name: "A"},
		schema.CalcSpec{Name: "B"},
		schema.CalcSpec{Name: "C"},
	)
	parsed := parseAll(t, map[string]string{
		"A": "[B] + 1",
		"B": "SUM([Sales])",
		"C": "[A] + [B]",
	})
	order, err := semantic.Order(sch, parsed)
	require.NoError(t, err)
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	assert.Len(t, order, 3)
	assert.Less(t, pos["B"], pos["A"])
	assert.Less(t, pos["A"], pos["C"])
}

func TestCycleDetection(t *testing.T) {
	sch := testSchema(
		schema.CalcSpec{Name: "X"},
		schema.CalcSpec{Name: "Y"},
		schema.CalcSpec{Name: "Z"},
	)
	parsed := parseAll(t, map[string]string{
		"X": "[Y] + 1",
		"Y": "[X] + 1",
		"Z": "SUM([Sales])",
	})
	order, err := semantic.Order(sch, parsed)
	require.Error(t, err)
	assert.Equal(t, []string{"Z"}, order)

	errs := multierr.Errors(err)
	require.Len(t, errs, 1)
	var cerr *semantic.CycleError
	require.ErrorAs(t, errs[0], &cerr)
	assert.ElementsMatch(t, []string{"X", "Y"}, cerr.Members)
}

func TestCaptionResolvesLikeName(t *testing.T) {
	sch := testSchema(
		schema.CalcSpec{Name: "Calculation_5", Caption: "Total Sales"},
		schema.CalcSpec{Name: "Calculation_6", Caption: "Margin"},
	)
	parsed := parseAll(t, map[string]string{
		"Calculation_5": "SUM([Sales])",
		"Calculation_6": "[Total Sales] / SUM([Profit])",
	})
	order, err := semantic.Order(sch, parsed)
	require.NoError(t, err)
	assert.Equal(t, []string{"Calculation_5", "Calculation_6"}, order)
}
