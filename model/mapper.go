package model

import (
	"fmt"

	"github.com/tabxdata/tabx/compiler/dax"
	"github.com/tabxdata/tabx/schema"
	"go.uber.org/zap"
)

// Build maps the source schemas onto one tabular model.  Joins become
// relationships with cardinality inferred from key columns, blends become
// cross-source relationships, and the final pass deactivates relationships
// until at most one active path connects any two tables.  Integrity
// problems are returned alongside the model; the model itself is always
// usable.
func Build(schemas []*schema.Schema, blends []schema.Blend, logger *zap.Logger) (*Model, []*IntegrityError) {
	m := &mapper{
		schemas: schemas,
		logger:  logger,
		model:   &Model{},
	}
	for _, sch := range schemas {
		m.tables(sch)
		m.joins(sch)
	}
	for _, b := range blends {
		m.blend(b)
	}
	m.prune()
	m.model.Relationships = m.decl
	return m.model, m.errs
}

type mapper struct {
	schemas []*schema.Schema
	logger  *zap.Logger
	model   *Model
	decl    []*Relationship
	errs    []*IntegrityError
}

func (m *mapper) tables(sch *schema.Schema) {
	for _, t := range sch.Tables {
		out := Table{Name: t.Name, Source: t.Source}
		for i := range t.Columns {
			c := &t.Columns[i]
			out.Columns = append(out.Columns, Column{
				Name:         c.DisplayName(),
				DataType:     dax.DataTypeName(c.Type),
				SourceColumn: c.Name,
				FormatString: dax.FormatStringFor(c.Type),
			})
		}
		m.model.Tables = append(m.model.Tables, out)
	}
}

func (m *mapper) joins(sch *schema.Schema) {
	for _, j := range sch.Joins {
		if len(j.Clauses) == 0 {
			m.fail(fmt.Sprintf("join between %s and %s has no clause", j.Left, j.Right), j.Left, j.Right)
			continue
		}
		cl := j.Clauses[0]
		left := m.column(sch, cl.LeftTable, cl.LeftColumn)
		right := m.column(sch, cl.RightTable, cl.RightColumn)
		if left == nil || right == nil {
			m.fail(fmt.Sprintf("join clause %s.%s = %s.%s references an unknown column",
				cl.LeftTable, cl.LeftColumn, cl.RightTable, cl.RightColumn), j.Left, j.Right)
			continue
		}
		if len(j.Clauses) > 1 {
			m.logger.Warn("composite join key reduced to its first clause",
				zap.String("left", j.Left), zap.String("right", j.Right),
				zap.Int("clauses", len(j.Clauses)))
		}
		r := &Relationship{
			FromTable:   cl.LeftTable,
			FromColumn:  left.DisplayName(),
			ToTable:     cl.RightTable,
			ToColumn:    right.DisplayName(),
			CrossFilter: FilterSingle,
		}
		switch {
		case left.Unique && right.Unique:
			r.Cardinality = OneToOne
		case right.Unique:
			r.Cardinality = ManyToOne
		case left.Unique:
			// Flip so the many side always filters toward the one side.
			r.FromTable, r.ToTable = r.ToTable, r.FromTable
			r.FromColumn, r.ToColumn = r.ToColumn, r.FromColumn
			r.Cardinality = ManyToOne
		default:
			r.Cardinality = ManyToMany
			m.logger.Warn("no key column on either side of join, emitting many-to-many",
				zap.String("relationship", r.String()))
		}
		m.decl = append(m.decl, r)
	}
}

// blend links two data sources on the first link field resolvable in both.
// A blend with no resolvable link field cannot be expressed as a
// relationship and is reported as an integrity error.
func (m *mapper) blend(b schema.Blend) {
	primary := m.schema(b.Primary)
	secondary := m.schema(b.Secondary)
	if primary == nil || secondary == nil {
		m.fail(fmt.Sprintf("blend references unknown data source %q or %q", b.Primary, b.Secondary),
			b.Primary, b.Secondary)
		return
	}
	for _, field := range b.LinkFields {
		pt, pc := primary.LookupColumn(field)
		st, sc := secondary.LookupColumn(field)
		if pc == nil || sc == nil {
			continue
		}
		r := &Relationship{
			FromTable:   st.Name,
			FromColumn:  sc.DisplayName(),
			ToTable:     pt.Name,
			ToColumn:    pc.DisplayName(),
			CrossFilter: FilterSingle,
			Cardinality: ManyToOne,
		}
		if !pc.Unique {
			// The link field is not a key on the primary side, so the
			// sources meet at mismatched granularity and filters must
			// flow both ways to reconcile it.
			r.Cardinality = ManyToMany
			r.CrossFilter = FilterBoth
			m.logger.Warn("blend link field is not unique on the primary source",
				zap.String("field", field), zap.String("relationship", r.String()))
		}
		m.decl = append(m.decl, r)
		if len(b.LinkFields) > 1 {
			m.logger.Warn("blend reduced to a single link field",
				zap.String("kept", field), zap.Int("declared", len(b.LinkFields)))
		}
		return
	}
	m.fail(fmt.Sprintf("blend between %s and %s has no link field present in both sources",
		b.Primary, b.Secondary), b.Primary, b.Secondary)
}

// prune walks relationships in declaration order and keeps exactly one
// active path between any two tables.  When a relationship closes a cycle,
// the shorter path wins; a direct relationship therefore displaces a
// longer chain even if the chain was declared first.  Ties go to
// declaration order.
func (m *mapper) prune() {
	adj := make(map[string][]*Relationship)
	connect := func(r *Relationship) {
		r.Active = true
		adj[r.FromTable] = append(adj[r.FromTable], r)
		adj[r.ToTable] = append(adj[r.ToTable], r)
	}
	disconnect := func(r *Relationship) {
		r.Active = false
		adj[r.FromTable] = remove(adj[r.FromTable], r)
		adj[r.ToTable] = remove(adj[r.ToTable], r)
	}
	order := make(map[*Relationship]int, len(m.decl))
	for i, r := range m.decl {
		order[r] = i
	}
	for _, r := range m.decl {
		if r.FromTable == r.ToTable {
			r.Active = false
			m.logger.Warn("self relationship deactivated", zap.String("relationship", r.String()))
			continue
		}
		path := findPath(adj, r.FromTable, r.ToTable)
		if path == nil {
			connect(r)
			continue
		}
		if len(path) > 1 {
			// The new direct relationship is a shorter route between its
			// endpoints.  Retire the youngest link of the existing chain
			// in its favor.
			victim := path[0]
			for _, e := range path[1:] {
				if order[e] > order[victim] {
					victim = e
				}
			}
			disconnect(victim)
			connect(r)
			m.logger.Info("relationship deactivated for a shorter path",
				zap.String("deactivated", victim.String()),
				zap.String("activated", r.String()))
			continue
		}
		r.Active = false
		m.logger.Info("redundant relationship deactivated",
			zap.String("deactivated", r.String()),
			zap.String("kept", path[0].String()))
	}
}

// findPath returns the relationships along the shortest active path from
// one table to another, or nil when they are not connected.
func findPath(adj map[string][]*Relationship, from, to string) []*Relationship {
	type hop struct {
		table string
		via   *Relationship
		prev  *hop
	}
	seen := map[string]bool{from: true}
	queue := []*hop{{table: from}}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h.table == to {
			var path []*Relationship
			for ; h.via != nil; h = h.prev {
				path = append(path, h.via)
			}
			return path
		}
		for _, r := range adj[h.table] {
			next := r.FromTable
			if next == h.table {
				next = r.ToTable
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, &hop{table: next, via: r, prev: h})
		}
	}
	return nil
}

func remove(rels []*Relationship, r *Relationship) []*Relationship {
	for i, e := range rels {
		if e == r {
			return append(rels[:i], rels[i+1:]...)
		}
	}
	return rels
}

func (m *mapper) schema(name string) *schema.Schema {
	for _, sch := range m.schemas {
		if sch.Name == name {
			return sch
		}
	}
	return nil
}

func (m *mapper) column(sch *schema.Schema, table, name string) *schema.Column {
	t := sch.Table(table)
	if t == nil {
		return nil
	}
	return t.LookupColumn(name)
}

func (m *mapper) fail(msg string, tables ...string) {
	err := &IntegrityError{Tables: tables, Msg: msg}
	m.errs = append(m.errs, err)
	m.logger.Error("model integrity", zap.Error(err))
}
