package schema

import (
	"strings"

	"go.uber.org/zap"

	"github.com/tabxdata/tabx/twb"
)

// Build turns one raw data source into a typed Schema.  Physical columns
// land on their owning tables, calculated columns become CalcSpecs, and the
// relation tree flattens into Joins in declaration order.
func Build(ds *twb.Datasource, logger *zap.Logger) *Schema {
	s := &Schema{Name: ds.DisplayName()}
	source := sourceInfo(ds.Connection)
	if ds.Connection != nil && ds.Connection.Relation != nil {
		var order int
		walkRelation(s, *ds.Connection.Relation, source, &order)
	}
	if len(s.Tables) == 0 {
		// Single-table source with no relation tree: the data source
		// itself is the table.
		s.Tables = append(s.Tables, &Table{Name: s.Name, Source: source})
	}
	base := s.Tables[0]
	for _, col := range ds.Columns {
		if col.Calculation != nil && col.Calculation.Formula != "" {
			s.Calcs = append(s.Calcs, CalcSpec{
				Name:     col.FieldName(),
				Caption:  col.Caption,
				Formula:  col.Calculation.Formula,
				Declared: ParseType(col.Datatype),
			})
			continue
		}
		c := Column{
			Name:    col.FieldName(),
			Caption: col.Caption,
			Type:    ParseType(col.Datatype),
			Role:    parseRole(col),
			Unique:  col.Unique || keyName(col.FieldName()),
		}
		if t := ownerOf(s, c.Name); t != nil {
			t.Columns = append(t.Columns, c)
		} else {
			base.Columns = append(base.Columns, c)
		}
	}
	logger.Debug("schema built",
		zap.String("datasource", s.Name),
		zap.Int("tables", len(s.Tables)),
		zap.Int("joins", len(s.Joins)),
		zap.Int("calculations", len(s.Calcs)))
	return s
}

// walkRelation flattens the relation tree: table leaves become Tables and
// join nodes become Joins over the tables their clauses name.
func walkRelation(s *Schema, r twb.Relation, source SourceInfo, order *int) {
	switch strings.ToLower(r.Type) {
	case "join":
		for _, child := range r.Relations {
			walkRelation(s, child, source, order)
		}
		join := Join{Type: joinType(r.Join), DeclOrder: *order}
		*order++
		for _, cl := range r.Clauses {
			lt, lc := splitFieldRef(cl.LHS)
			rt, rc := splitFieldRef(cl.RHS)
			join.Clauses = append(join.Clauses, JoinClause{
				LeftTable:   lt,
				LeftColumn:  lc,
				RightTable:  rt,
				RightColumn: rc,
				Op:          cl.Op,
			})
			if join.Left == "" {
				join.Left, join.Right = lt, rt
			}
		}
		if join.Left != "" && join.Right != "" {
			s.Joins = append(s.Joins, join)
		}
	default:
		name := r.Name
		if name == "" {
			name = strings.Trim(r.Table, "[]")
		}
		if name != "" && s.Table(name) == nil {
			s.Tables = append(s.Tables, &Table{Name: name, Source: source})
		}
	}
}

// ownerOf finds the table a join clause binds the column to, so columns
// land on the table their joins reference rather than all on the base.
func ownerOf(s *Schema, column string) *Table {
	for _, j := range s.Joins {
		for _, cl := range j.Clauses {
			if strings.EqualFold(cl.LeftColumn, column) {
				return s.Table(cl.LeftTable)
			}
			if strings.EqualFold(cl.RightColumn, column) {
				return s.Table(cl.RightTable)
			}
		}
	}
	return nil
}

// splitFieldRef splits "[Orders].[Customer ID]" into table and column.
func splitFieldRef(ref string) (table, column string) {
	parts := strings.SplitN(ref, "].[", 2)
	if len(parts) == 2 {
		return strings.TrimPrefix(parts[0], "["), strings.TrimSuffix(parts[1], "]")
	}
	return "", strings.Trim(ref, "[]")
}

func joinType(s string) JoinType {
	switch strings.ToLower(s) {
	case "left":
		return JoinLeft
	case "right":
		return JoinRight
	case "full":
		return JoinFull
	}
	return JoinInner
}

func parseRole(col twb.Column) Role {
	if strings.EqualFold(col.Role, "measure") {
		return RoleMeasure
	}
	if col.Role == "" && ParseType(col.Datatype).Numeric() {
		return RoleMeasure
	}
	return RoleDimension
}

// keyName reports whether a column name looks like a key, the uniqueness
// hint used when the workbook declares nothing.
func keyName(name string) bool {
	lower := strings.ToLower(name)
	return lower == "id" ||
		strings.HasSuffix(lower, " id") ||
		strings.HasSuffix(lower, "_id") ||
		strings.HasSuffix(lower, "key")
}

// DetectBlends pairs data sources that share dimension names, the implicit
// linking rule the source tool uses for blending.  The first schema in
// declaration order is the primary.
func DetectBlends(schemas []*Schema) []Blend {
	var blends []Blend
	for i := 0; i < len(schemas); i++ {
		for j := i + 1; j < len(schemas); j++ {
			links := sharedDimensions(schemas[i], schemas[j])
			if len(links) > 0 {
				blends = append(blends, Blend{
					Primary:    schemas[i].Name,
					Secondary:  schemas[j].Name,
					LinkFields: links,
				})
			}
		}
	}
	return blends
}

func sharedDimensions(a, b *Schema) []string {
	var links []string
	for _, t := range a.Tables {
		for i := range t.Columns {
			c := &t.Columns[i]
			if c.Role != RoleDimension {
				continue
			}
			if bt, bc := b.LookupColumn(c.Name); bt != nil && bc.Role == RoleDimension {
				links = append(links, c.Name)
			}
		}
	}
	return links
}

// sourceInfo maps a workbook connection onto a target source descriptor.
func sourceInfo(conn *twb.Connection) SourceInfo {
	if conn == nil {
		return SourceInfo{Type: "Generic"}
	}
	class := strings.ToLower(conn.Class)
	switch {
	case strings.Contains(class, "oracle"):
		return SourceInfo{Type: "Oracle", Server: conn.Server, Database: conn.DBName, Username: conn.Username}
	case strings.Contains(class, "mysql"):
		return SourceInfo{Type: "MySQL", Server: conn.Server, Database: conn.DBName, Username: conn.Username}
	case strings.Contains(class, "sqlserver"):
		return SourceInfo{Type: "SQL", Server: conn.Server, Database: conn.DBName, Username: conn.Username}
	case strings.Contains(class, "postgres"):
		return SourceInfo{Type: "PostgreSQL", Server: conn.Server, Database: conn.DBName, Username: conn.Username}
	case strings.Contains(class, "excel"), strings.Contains(class, "csv"), strings.Contains(class, "textscan"):
		return SourceInfo{Type: "File", Path: conn.DBName}
	}
	return SourceInfo{Type: "Generic", Server: conn.Server, Database: conn.DBName, Username: conn.Username}
}
