package twb_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabxdata/tabx/twb"
)

const sampleWorkbook = `<?xml version='1.0' encoding='utf-8' ?>
<workbook>
  <datasources>
    <datasource name='federated.1abc' caption='Superstore'>
      <connection class='postgres' server='db.local' dbname='sales' username='bi'>
        <relation type='join' join='inner'>
          <clause op='=' lhs='[Orders].[Customer ID]' rhs='[Customers].[Customer ID]' />
          <relation type='table' name='Orders' table='[public].[orders]' />
          <relation type='table' name='Customers' table='[public].[customers]' />
        </relation>
      </connection>
      <column name='[Sales]' datatype='real' role='measure' />
      <column name='[Customer ID]' datatype='string' role='dimension' />
      <column name='[Region]' caption='Sales Region' datatype='string' role='dimension' />
      <column name='[Calculation_1]' caption='Margin' datatype='real' role='measure'>
        <calculation class='tableau' formula='SUM([Sales]) / SUM([Profit])' />
      </column>
    </datasource>
  </datasources>
  <worksheets>
    <worksheet name='Sheet 1'>
      <table>
        <rows>[federated.1abc].[sum:Sales:qk]</rows>
        <cols>[federated.1abc].[none:Region:nk]</cols>
        <panes>
          <pane>
            <mark class='Bar' />
            <encodings>
              <encoding type='color' field='[federated.1abc].[none:Region:nk]' />
            </encodings>
          </pane>
        </panes>
        <view>
          <filter field='[federated.1abc].[none:Region:nk]' type='categorical'>
            <value>East</value>
            <value>West</value>
          </filter>
        </view>
      </table>
    </worksheet>
  </worksheets>
  <dashboards>
    <dashboard name='Overview' maxwidth='1600' maxheight='900'>
      <zones>
        <zone type='layout-basic' x='0' y='0' w='1600' h='900'>
          <zone name='Sheet 1' x='100' y='50' w='800' h='400' />
        </zone>
      </zones>
    </dashboard>
  </dashboards>
</workbook>`

func TestParseWorkbook(t *testing.T) {
	wb, err := twb.Parse(strings.NewReader(sampleWorkbook))
	require.NoError(t, err)

	require.Len(t, wb.Datasources, 1)
	ds := wb.Datasources[0]
	assert.Equal(t, "Superstore", ds.DisplayName())
	require.NotNil(t, ds.Connection)
	assert.Equal(t, "postgres", ds.Connection.Class)
	require.NotNil(t, ds.Connection.Relation)
	assert.Equal(t, "join", ds.Connection.Relation.Type)
	require.Len(t, ds.Connection.Relation.Clauses, 1)
	assert.Equal(t, "[Orders].[Customer ID]", ds.Connection.Relation.Clauses[0].LHS)
	require.Len(t, ds.Connection.Relation.Relations, 2)

	require.Len(t, ds.Columns, 4)
	assert.Equal(t, "Sales", ds.Columns[0].FieldName())
	assert.Equal(t, "Sales Region", ds.Columns[2].DisplayName())
	require.NotNil(t, ds.Columns[3].Calculation)
	assert.Equal(t, "SUM([Sales]) / SUM([Profit])", ds.Columns[3].Calculation.Formula)

	require.Len(t, wb.Worksheets, 1)
	ws := wb.Worksheets[0]
	assert.Equal(t, "bar", ws.MarkType())
	assert.Equal(t, "[federated.1abc].[none:Region:nk]", ws.EncodingMap()["color"])
	require.Len(t, ws.Filters, 1)
	assert.Len(t, ws.Filters[0].Values, 2)

	require.Len(t, wb.Dashboards, 1)
	d := wb.Dashboards[0]
	assert.Equal(t, 1600, d.MaxWidth)
	require.Len(t, d.Zones, 1)
	require.Len(t, d.Zones[0].Zones, 1)
	assert.Equal(t, "Sheet 1", d.Zones[0].Zones[0].Name)
	assert.Equal(t, 100.0, d.Zones[0].Zones[0].X)
}

func TestMarkTypeDefaultsToAutomatic(t *testing.T) {
	ws := twb.Worksheet{Name: "Empty"}
	assert.Equal(t, "automatic", ws.MarkType())
}
