package nativesql

import (
	"errors"
	"testing"

	"github.com/ssogunle-tc/datahub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Tables(t *testing.T) {
	p := New(WithLogger(testutil.NewTestLogger(t)))

	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "schema qualified",
			sql:  "SELECT * FROM sales.orders",
			want: []string{"sales.orders"},
		},
		{
			name: "three part names with join",
			sql:  "SELECT o.id FROM analytics.sales.orders o JOIN analytics.sales.customers c ON o.cid = c.id",
			want: []string{"analytics.sales.orders", "analytics.sales.customers"},
		},
		{
			name: "derived table",
			sql:  "SELECT * FROM (SELECT id FROM sales.orders) x JOIN sales.returns r ON x.id = r.id",
			want: []string{"sales.orders", "sales.returns"},
		},
		{
			name: "bracket identifiers and trailing semicolon",
			sql:  "SELECT * FROM [dbo].[book];",
			want: []string{"dbo.book"},
		},
		{
			name: "common table expression",
			sql:  "WITH c AS (SELECT * FROM s.t) SELECT * FROM c",
			want: []string{"s.t"},
		},
		{
			name: "chained common table expressions",
			sql:  "WITH a AS (SELECT id FROM s.t1), b AS (SELECT id FROM a JOIN s.t2 x ON a.id = x.id) SELECT * FROM b JOIN s.t3 y ON b.id = y.id",
			want: []string{"s.t1", "s.t2", "s.t3"},
		},
		{
			name: "union branches",
			sql:  "SELECT a FROM s.t1 UNION ALL SELECT a FROM s.t2",
			want: []string{"s.t1", "s.t2"},
		},
		{
			name: "where subquery",
			sql:  "SELECT a FROM s.t1 WHERE id IN (SELECT id FROM s.t2)",
			want: []string{"s.t1", "s.t2"},
		},
		{
			name: "duplicates collapse",
			sql:  "SELECT * FROM book a JOIN book b ON a.id = b.parent_id",
			want: []string{"book"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables, err := p.Tables(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tables)
		})
	}
}

func TestParser_EmptyStatement(t *testing.T) {
	_, err := New().Tables("  ;  ")
	assert.True(t, errors.Is(err, ErrEmptyStatement))
}

func TestParser_NoFallback(t *testing.T) {
	p := New(WithFallback(false))
	_, err := p.Tables("this is not sql")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM [dbo].[book]; -- trailing", "SELECT * FROM dbo.book"},
		{"/* header */ SELECT 1 FROM t", "SELECT 1 FROM t"},
		{"  select *\n  from t ;\n", "select *\n  from t"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestScanTables(t *testing.T) {
	sql := `select * from "DB"."PUBLIC"."ORDERS" o left join DB.PUBLIC.ITEMS i on o.id = i.oid where x in (select y from DB.PUBLIC.Y)`
	assert.Equal(t, []string{"DB.PUBLIC.ORDERS", "DB.PUBLIC.ITEMS", "DB.PUBLIC.Y"}, scanTables(sql))

	sql = `with recent as (select * from DB.PUBLIC.ORDERS), big as (select * from recent) select * from big join DB.PUBLIC.ITEMS i on big.id = i.oid`
	assert.Equal(t, []string{"DB.PUBLIC.ORDERS", "DB.PUBLIC.ITEMS"}, scanTables(sql))
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "db.schema.t", cleanName(" `db`.\"schema\".t "))
	assert.Equal(t, "", cleanName("db..t"))
}
