package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

// Query builds a resource path with query-string filters in the
// table?column=op.value&select=a,b&limit=N form.
type Query struct {
	table   string
	filters []string
	selects []string
	order   string
	limit   int
}

// From starts a query on table.
func From(table string) *Query {
	return &Query{table: table}
}

// Filter starts a table-less query, used as the filter of a Patch.
func Filter() *Query {
	return &Query{}
}

// From sets the table, returning a copy so a filter can be reused.
func (q *Query) From(table string) *Query {
	cp := *q
	cp.table = table
	return &cp
}

// Eq adds column=eq.value.
func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, column+"=eq."+url.QueryEscape(fmt.Sprint(value)))
	return q
}

// IsNull adds column=is.null.
func (q *Query) IsNull(column string) *Query {
	q.filters = append(q.filters, column+"=is.null")
	return q
}

// In adds column=in.(v1,v2,...).
func (q *Query) In(column string, values ...string) *Query {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = url.QueryEscape(v)
	}
	q.filters = append(q.filters, column+"=in.("+strings.Join(escaped, ",")+")")
	return q
}

// Select restricts the returned columns.
func (q *Query) Select(columns ...string) *Query {
	q.selects = append(q.selects, columns...)
	return q
}

// Order sorts by column; desc selects descending order.
func (q *Query) Order(column string, desc bool) *Query {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.order = column + "." + dir
	return q
}

// Limit caps the number of rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// String renders the path and query string.
func (q *Query) String() string {
	params := make([]string, 0, len(q.filters)+3)
	params = append(params, q.filters...)
	if len(q.selects) > 0 {
		params = append(params, "select="+strings.Join(q.selects, ","))
	}
	if q.order != "" {
		params = append(params, "order="+q.order)
	}
	if q.limit > 0 {
		params = append(params, fmt.Sprintf("limit=%d", q.limit))
	}
	if len(params) == 0 {
		return q.table
	}
	return q.table + "?" + strings.Join(params, "&")
}
