package database

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// buildSelect assembles a SELECT statement with named parameters. Table,
// column and filter names are restricted to plain identifiers since they
// come from endpoint configuration, not from a bind-safe channel.
func buildSelect(table string, columns []string, filters map[string]any, orderBy string, limit, offset int) (string, map[string]any, error) {
	if !identifierPattern.MatchString(table) {
		return "", nil, fmt.Errorf("invalid table name %q", table)
	}

	columnsClause := "*"
	if len(columns) > 0 {
		for _, column := range columns {
			if !identifierPattern.MatchString(column) {
				return "", nil, fmt.Errorf("invalid column name %q", column)
			}
		}
		columnsClause = strings.Join(columns, ", ")
	}

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(columnsClause)
	builder.WriteString(" FROM ")
	builder.WriteString(table)

	args := make(map[string]any, len(filters))
	if len(filters) > 0 {
		names := make([]string, 0, len(filters))
		for name := range filters {
			if !identifierPattern.MatchString(name) {
				return "", nil, fmt.Errorf("invalid filter column %q", name)
			}
			names = append(names, name)
		}
		sort.Strings(names)
		clauses := make([]string, 0, len(names))
		for i, name := range names {
			param := fmt.Sprintf("param_%d", i)
			clauses = append(clauses, fmt.Sprintf("%s = @%s", name, param))
			args[param] = filters[name]
		}
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(clauses, " AND "))
	}

	if orderBy != "" {
		clause, err := orderByClause(orderBy)
		if err != nil {
			return "", nil, err
		}
		builder.WriteString(" ORDER BY ")
		builder.WriteString(clause)
	}

	if limit > 0 {
		fmt.Fprintf(&builder, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&builder, " OFFSET %d", offset)
	}

	return builder.String(), args, nil
}

// orderByClause accepts "column" or "column asc|desc".
func orderByClause(orderBy string) (string, error) {
	parts := strings.Fields(orderBy)
	if len(parts) == 0 || len(parts) > 2 || !identifierPattern.MatchString(parts[0]) {
		return "", fmt.Errorf("invalid order_by %q", orderBy)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	direction := strings.ToUpper(parts[1])
	if direction != "ASC" && direction != "DESC" {
		return "", fmt.Errorf("invalid order_by direction %q", parts[1])
	}
	return parts[0] + " " + direction, nil
}
