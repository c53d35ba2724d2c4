package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tabxdata/tabx/model"
	"github.com/tabxdata/tabx/schema"
)

func table(name string, cols ...schema.Column) *schema.Table {
	return &schema.Table{Name: name, Columns: cols}
}

func key(name string) schema.Column {
	return schema.Column{Name: name, Type: schema.TypeString, Role: schema.RoleDimension, Unique: true}
}

func dim(name string) schema.Column {
	return schema.Column{Name: name, Type: schema.TypeString, Role: schema.RoleDimension}
}

func join(order int, lt, lc, rt, rc string) schema.Join {
	return schema.Join{
		Left: lt, Right: rt, Type: schema.JoinInner, DeclOrder: order,
		Clauses: []schema.JoinClause{{LeftTable: lt, LeftColumn: lc, RightTable: rt, RightColumn: rc}},
	}
}

func TestCardinalityInference(t *testing.T) {
	sch := &schema.Schema{
		Name: "ds",
		Tables: []*schema.Table{
			table("Orders", dim("Customer ID"), dim("Product ID")),
			table("Customers", key("Customer ID")),
			table("Products", dim("Product ID")),
		},
		Joins: []schema.Join{
			join(0, "Orders", "Customer ID", "Customers", "Customer ID"),
			join(1, "Orders", "Product ID", "Products", "Product ID"),
		},
	}
	mdl, errs := model.Build([]*schema.Schema{sch}, nil, zap.NewNop())
	require.Empty(t, errs)
	require.Len(t, mdl.Relationships, 2)

	r := mdl.Relationships[0]
	assert.Equal(t, model.ManyToOne, r.Cardinality)
	assert.Equal(t, "Orders", r.FromTable)
	assert.Equal(t, "Customers", r.ToTable)
	assert.True(t, r.Active)

	assert.Equal(t, model.ManyToMany, mdl.Relationships[1].Cardinality)
}

func TestUniqueLeftSideFlips(t *testing.T) {
	sch := &schema.Schema{
		Name: "ds",
		Tables: []*schema.Table{
			table("Customers", key("Customer ID")),
			table("Orders", dim("Customer ID")),
		},
		Joins: []schema.Join{join(0, "Customers", "Customer ID", "Orders", "Customer ID")},
	}
	mdl, errs := model.Build([]*schema.Schema{sch}, nil, zap.NewNop())
	require.Empty(t, errs)
	require.Len(t, mdl.Relationships, 1)
	r := mdl.Relationships[0]
	assert.Equal(t, model.ManyToOne, r.Cardinality)
	assert.Equal(t, "Orders", r.FromTable)
	assert.Equal(t, "Customers", r.ToTable)
}

// Two distinct paths between a pair of tables must leave exactly one active
// path, and the direct relationship wins over the longer chain no matter
// which was declared first.
func TestSingleActivePath(t *testing.T) {
	tables := []*schema.Table{
		table("A", key("id"), dim("b_id"), dim("c_id")),
		table("B", key("b_id"), dim("c_id")),
		table("C", key("c_id")),
	}
	chainFirst := []schema.Join{
		join(0, "A", "b_id", "B", "b_id"),
		join(1, "B", "c_id", "C", "c_id"),
		join(2, "A", "c_id", "C", "c_id"),
	}
	directFirst := []schema.Join{
		join(0, "A", "c_id", "C", "c_id"),
		join(1, "A", "b_id", "B", "b_id"),
		join(2, "B", "c_id", "C", "c_id"),
	}
	for name, joins := range map[string][]schema.Join{"chain first": chainFirst, "direct first": directFirst} {
		t.Run(name, func(t *testing.T) {
			sch := &schema.Schema{Name: "ds", Tables: tables, Joins: joins}
			mdl, errs := model.Build([]*schema.Schema{sch}, nil, zap.NewNop())
			require.Empty(t, errs)
			require.Len(t, mdl.Relationships, 3)

			active := 0
			for _, r := range mdl.Relationships {
				if r.Active {
					active++
				}
			}
			assert.Equal(t, 2, active)
			direct := findRel(t, mdl, "A", "C")
			assert.True(t, direct.Active, "direct relationship must stay active")
		})
	}
}

func findRel(t *testing.T, mdl *model.Model, from, to string) *model.Relationship {
	t.Helper()
	for _, r := range mdl.Relationships {
		if r.FromTable == from && r.ToTable == to {
			return r
		}
	}
	t.Fatalf("no relationship %s -> %s", from, to)
	return nil
}

func TestBlendRelationship(t *testing.T) {
	primary := &schema.Schema{
		Name:   "Sales",
		Tables: []*schema.Table{table("Orders", key("Region"))},
	}
	secondary := &schema.Schema{
		Name:   "Targets",
		Tables: []*schema.Table{table("Quota", dim("Region"))},
	}
	blend := schema.Blend{Primary: "Sales", Secondary: "Targets", LinkFields: []string{"Region"}}
	mdl, errs := model.Build([]*schema.Schema{primary, secondary}, []schema.Blend{blend}, zap.NewNop())
	require.Empty(t, errs)
	require.Len(t, mdl.Relationships, 1)
	r := mdl.Relationships[0]
	assert.Equal(t, "Quota", r.FromTable)
	assert.Equal(t, "Orders", r.ToTable)
	assert.Equal(t, model.ManyToOne, r.Cardinality)
	assert.Equal(t, model.FilterSingle, r.CrossFilter)
}

func TestBlendGranularityMismatch(t *testing.T) {
	primary := &schema.Schema{
		Name:   "Sales",
		Tables: []*schema.Table{table("Orders", dim("Region"))},
	}
	secondary := &schema.Schema{
		Name:   "Targets",
		Tables: []*schema.Table{table("Quota", dim("Region"))},
	}
	blend := schema.Blend{Primary: "Sales", Secondary: "Targets", LinkFields: []string{"Region"}}
	mdl, errs := model.Build([]*schema.Schema{primary, secondary}, []schema.Blend{blend}, zap.NewNop())
	require.Empty(t, errs)
	require.Len(t, mdl.Relationships, 1)
	r := mdl.Relationships[0]
	assert.Equal(t, model.ManyToMany, r.Cardinality)
	assert.Equal(t, model.FilterBoth, r.CrossFilter)
}

func TestBlendWithoutLinkFieldFails(t *testing.T) {
	primary := &schema.Schema{
		Name:   "Sales",
		Tables: []*schema.Table{table("Orders", dim("Region"))},
	}
	secondary := &schema.Schema{
		Name:   "Targets",
		Tables: []*schema.Table{table("Quota", dim("Quarter"))},
	}
	blend := schema.Blend{Primary: "Sales", Secondary: "Targets", LinkFields: []string{"Segment"}}
	mdl, errs := model.Build([]*schema.Schema{primary, secondary}, []schema.Blend{blend}, zap.NewNop())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no link field")
	assert.Empty(t, mdl.Relationships)
}

func TestTableColumns(t *testing.T) {
	sch := &schema.Schema{
		Name: "ds",
		Tables: []*schema.Table{{
			Name: "Orders",
			Columns: []schema.Column{
				{Name: "Sales", Type: schema.TypeNumber, Role: schema.RoleMeasure},
				{Name: "Order Date", Caption: "Date", Type: schema.TypeDate, Role: schema.RoleDimension},
			},
		}},
	}
	mdl, errs := model.Build([]*schema.Schema{sch}, nil, zap.NewNop())
	require.Empty(t, errs)
	require.Len(t, mdl.Tables, 1)
	cols := mdl.Tables[0].Columns
	require.Len(t, cols, 2)
	assert.Equal(t, "Double", cols[0].DataType)
	assert.Equal(t, "#,0.00", cols[0].FormatString)
	assert.Equal(t, "Date", cols[1].Name)
	assert.Equal(t, "Order Date", cols[1].SourceColumn)
	assert.Equal(t, "MM/dd/yyyy", cols[1].FormatString)
}
