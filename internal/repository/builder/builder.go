package builder

import (
	"fmt"
	"strings"
)

type statement int

const (
	stmtSelect statement = iota + 1
	stmtInsert
	stmtUpdate
	stmtDelete
)

// condition is one WHERE fragment using "?" placeholders.
type condition struct {
	sql   string
	args  []interface{}
	joint string // "AND" or "OR", ignored for the first condition
	group *SQLBuilder
}

// SQLBuilder helps construct SQL queries dynamically. Placeholders are
// written as "?" and renumbered to $1..$n by Build.
type SQLBuilder struct {
	stmt     statement
	table    string
	columns  []string
	values   []interface{}
	sets     []condition
	joins    []string
	where    []condition
	orderBy  []string
	limit    int
	offset   int
	suffixes []string
}

// NewSQLBuilder creates a new instance of SQLBuilder.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{}
}

// Select specifies the columns to retrieve.
func (b *SQLBuilder) Select(cols ...string) *SQLBuilder {
	b.stmt = stmtSelect
	b.columns = cols
	return b
}

// Insert specifies the table and columns for insertion.
func (b *SQLBuilder) Insert(table string, cols ...string) *SQLBuilder {
	b.stmt = stmtInsert
	b.table = table
	b.columns = cols
	return b
}

// Update specifies the table to update.
func (b *SQLBuilder) Update(table string) *SQLBuilder {
	b.stmt = stmtUpdate
	b.table = table
	return b
}

// Delete specifies the table to delete from.
func (b *SQLBuilder) Delete(table string) *SQLBuilder {
	b.stmt = stmtDelete
	b.table = table
	return b
}

// From specifies the table to select from.
func (b *SQLBuilder) From(table string) *SQLBuilder {
	b.table = table
	return b
}

// Set adds "col = ?" to an UPDATE.
func (b *SQLBuilder) Set(col string, val interface{}) *SQLBuilder {
	b.sets = append(b.sets, condition{sql: col + " = ?", args: []interface{}{val}})
	return b
}

// SetRaw adds an arbitrary SET fragment such as "updated_at = now()".
func (b *SQLBuilder) SetRaw(expr string, args ...interface{}) *SQLBuilder {
	b.sets = append(b.sets, condition{sql: expr, args: args})
	return b
}

// Values specifies the values for insertion.
func (b *SQLBuilder) Values(vals ...interface{}) *SQLBuilder {
	b.values = vals
	return b
}

// Where adds a condition combined with AND.
func (b *SQLBuilder) Where(cond string, args ...interface{}) *SQLBuilder {
	b.where = append(b.where, condition{sql: cond, args: args, joint: "AND"})
	return b
}

// Or adds a condition combined with OR.
func (b *SQLBuilder) Or(cond string, args ...interface{}) *SQLBuilder {
	b.where = append(b.where, condition{sql: cond, args: args, joint: "OR"})
	return b
}

// WhereGroup adds a parenthesized group, combined with AND. The function
// receives an empty builder whose Where/Or calls make up the group.
func (b *SQLBuilder) WhereGroup(fn func(g *SQLBuilder) *SQLBuilder) *SQLBuilder {
	g := fn(NewSQLBuilder())
	if len(g.where) == 0 {
		return b
	}
	b.where = append(b.where, condition{group: g, joint: "AND"})
	return b
}

// Join adds a JOIN clause.
func (b *SQLBuilder) Join(joinType, table, on string) *SQLBuilder {
	b.joins = append(b.joins, fmt.Sprintf("%s JOIN %s ON %s", joinType, table, on))
	return b
}

// OrderBy adds an ORDER BY clause.
func (b *SQLBuilder) OrderBy(order string) *SQLBuilder {
	b.orderBy = append(b.orderBy, order)
	return b
}

// Limit adds a LIMIT clause.
func (b *SQLBuilder) Limit(limit int) *SQLBuilder {
	b.limit = limit
	return b
}

// Offset adds an OFFSET clause.
func (b *SQLBuilder) Offset(offset int) *SQLBuilder {
	b.offset = offset
	return b
}

// Suffix appends raw SQL after everything else, e.g. "FOR UPDATE" or "RETURNING id".
func (b *SQLBuilder) Suffix(sql string) *SQLBuilder {
	b.suffixes = append(b.suffixes, sql)
	return b
}

// BuildSafe is Build plus a check that every argument has a placeholder.
func (b *SQLBuilder) BuildSafe() (string, []interface{}, error) {
	query, args := b.Build()
	if want := strings.Count(b.raw(), "?"); want != len(args) {
		return "", nil, fmt.Errorf("placeholder count (%d) does not match argument count (%d)", want, len(args))
	}
	return query, args, nil
}

// Build constructs the final SQL string and arguments.
func (b *SQLBuilder) Build() (string, []interface{}) {
	raw := b.raw()
	return numberPlaceholders(raw), b.args()
}

// raw renders the statement with "?" placeholders.
func (b *SQLBuilder) raw() string {
	var sb strings.Builder

	switch b.stmt {
	case stmtSelect:
		sb.WriteString("SELECT ")
		sb.WriteString(strings.Join(b.columns, ", "))
		sb.WriteString(" FROM ")
		sb.WriteString(b.table)
		for _, join := range b.joins {
			sb.WriteString(" ")
			sb.WriteString(join)
		}
	case stmtInsert:
		sb.WriteString("INSERT INTO ")
		sb.WriteString(b.table)
		sb.WriteString(" (")
		sb.WriteString(strings.Join(b.columns, ", "))
		sb.WriteString(") VALUES (")
		sb.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(b.values)), ", "))
		sb.WriteString(")")
	case stmtUpdate:
		sb.WriteString("UPDATE ")
		sb.WriteString(b.table)
		sb.WriteString(" SET ")
		parts := make([]string, len(b.sets))
		for i, s := range b.sets {
			parts[i] = s.sql
		}
		sb.WriteString(strings.Join(parts, ", "))
	case stmtDelete:
		sb.WriteString("DELETE FROM ")
		sb.WriteString(b.table)
	}

	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(renderConditions(b.where))
	}

	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}
	if b.offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", b.offset))
	}
	for _, s := range b.suffixes {
		sb.WriteString(" ")
		sb.WriteString(s)
	}
	return sb.String()
}

// args returns arguments in the order their placeholders appear.
func (b *SQLBuilder) args() []interface{} {
	var args []interface{}
	args = append(args, b.values...)
	for _, s := range b.sets {
		args = append(args, s.args...)
	}
	return appendConditionArgs(args, b.where)
}

func renderConditions(conds []condition) string {
	var sb strings.Builder
	for i, c := range conds {
		if i > 0 {
			sb.WriteString(" " + c.joint + " ")
		}
		if c.group != nil {
			sb.WriteString("(" + renderConditions(c.group.where) + ")")
			continue
		}
		sb.WriteString(c.sql)
	}
	return sb.String()
}

func appendConditionArgs(args []interface{}, conds []condition) []interface{} {
	for _, c := range conds {
		if c.group != nil {
			args = appendConditionArgs(args, c.group.where)
			continue
		}
		args = append(args, c.args...)
	}
	return args
}

func numberPlaceholders(raw string) string {
	var sb strings.Builder
	n := 0
	for _, r := range raw {
		if r == '?' {
			n++
			sb.WriteString(fmt.Sprintf("$%d", n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
