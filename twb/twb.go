// Package twb reads Tableau workbook XML and exposes the raw metadata the
// converter consumes: data sources with columns and calculations, join
// relations, worksheets with marks and encodings, and dashboards with their
// zone trees.
package twb

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

type Workbook struct {
	Datasources []Datasource `xml:"datasources>datasource"`
	Worksheets  []Worksheet  `xml:"worksheets>worksheet"`
	Dashboards  []Dashboard  `xml:"dashboards>dashboard"`
}

type Datasource struct {
	Name       string      `xml:"name,attr"`
	Caption    string      `xml:"caption,attr"`
	Connection *Connection `xml:"connection"`
	Columns    []Column    `xml:"column"`
}

// DisplayName prefers the user-facing caption over the internal name.
func (d *Datasource) DisplayName() string {
	if d.Caption != "" {
		return d.Caption
	}
	return d.Name
}

type Connection struct {
	Class    string    `xml:"class,attr"`
	Server   string    `xml:"server,attr"`
	DBName   string    `xml:"dbname,attr"`
	Username string    `xml:"username,attr"`
	Relation *Relation `xml:"relation"`
}

// A Relation is a table or a join node.  Join nodes carry clauses and
// nested relations; table nodes carry the table name.
type Relation struct {
	Type      string     `xml:"type,attr"`
	Name      string     `xml:"name,attr"`
	Table     string     `xml:"table,attr"`
	Join      string     `xml:"join,attr"`
	Clauses   []Clause   `xml:"clause"`
	Relations []Relation `xml:"relation"`
}

type Clause struct {
	LHS string `xml:"lhs,attr"`
	RHS string `xml:"rhs,attr"`
	Op  string `xml:"op,attr"`
}

type Column struct {
	Name        string       `xml:"name,attr"`
	Caption     string       `xml:"caption,attr"`
	Datatype    string       `xml:"datatype,attr"`
	Role        string       `xml:"role,attr"`
	Unique      bool         `xml:"unique,attr"`
	Calculation *Calculation `xml:"calculation"`
}

// FieldName strips the surrounding brackets Tableau stores column names in.
func (c *Column) FieldName() string {
	return strings.TrimSuffix(strings.TrimPrefix(c.Name, "["), "]")
}

// DisplayName prefers the user-facing caption over the internal name.
func (c *Column) DisplayName() string {
	if c.Caption != "" {
		return c.Caption
	}
	return c.FieldName()
}

type Calculation struct {
	Class   string `xml:"class,attr"`
	Formula string `xml:"formula,attr"`
}

type Worksheet struct {
	Name    string   `xml:"name,attr"`
	Rows    string   `xml:"table>rows"`
	Cols    string   `xml:"table>cols"`
	Panes   []Pane   `xml:"table>panes>pane"`
	Filters []Filter `xml:"table>view>filter"`
}

type Pane struct {
	Mark      *Mark      `xml:"mark"`
	Encodings []Encoding `xml:"encodings>encoding"`
}

// MarkType returns the worksheet's mark class from its first pane, or
// "automatic" when none is declared.
func (w *Worksheet) MarkType() string {
	for _, p := range w.Panes {
		if p.Mark != nil && p.Mark.Class != "" {
			return strings.ToLower(p.Mark.Class)
		}
	}
	return "automatic"
}

// Encodings merges the encoding channels of every pane, first pane winning
// on duplicate channels.
func (w *Worksheet) EncodingMap() map[string]string {
	out := make(map[string]string)
	for _, p := range w.Panes {
		for _, e := range p.Encodings {
			if _, ok := out[e.Type]; !ok && e.Type != "" {
				out[e.Type] = e.Field
			}
		}
	}
	return out
}

type Mark struct {
	Class string `xml:"class,attr"`
}

type Encoding struct {
	Type  string `xml:"type,attr"`
	Field string `xml:"field,attr"`
}

type Filter struct {
	Field  string        `xml:"field,attr"`
	Type   string        `xml:"type,attr"`
	Values []FilterValue `xml:"value"`
}

type FilterValue struct {
	Text string `xml:",chardata"`
}

type Dashboard struct {
	Name      string `xml:"name,attr"`
	MaxWidth  int    `xml:"maxwidth,attr"`
	MaxHeight int    `xml:"maxheight,attr"`
	Zones     []Zone `xml:"zones>zone"`
}

// A Zone is one rectangle of a dashboard.  Zones nest; a zone naming a
// worksheet is a visual leaf, anything else is a layout container.
// Geometry is relative to the parent zone.
type Zone struct {
	Type  string  `xml:"type,attr"`
	Name  string  `xml:"name,attr"`
	X     float64 `xml:"x,attr"`
	Y     float64 `xml:"y,attr"`
	W     float64 `xml:"w,attr"`
	H     float64 `xml:"h,attr"`
	Zones []Zone  `xml:"zone"`
}

// Load reads and parses a workbook file.
func Load(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	wb, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wb, nil
}

// Parse decodes workbook XML from r.
func Parse(r io.Reader) (*Workbook, error) {
	var wb Workbook
	if err := xml.NewDecoder(r).Decode(&wb); err != nil {
		return nil, fmt.Errorf("parsing workbook: %w", err)
	}
	return &wb, nil
}
