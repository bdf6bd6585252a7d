package featurestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Meesho/BharatMLStack/weaver/pkg/infra"
	"github.com/gocql/gocql"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Rows reads one feature row per entity from the online store. A nil map
// without an error means the entity has no row.
type Rows interface {
	FetchRow(ctx context.Context, keyspace, table, keyColumn string, keyValue any, columns []string) (map[string]any, error)
}

type gocqlStore struct {
	keySpace string
	session  *gocql.Session
}

// NewStore wraps the shared Scylla connection from pkg/infra. The
// connection's keyspace is used for sources that do not declare one.
func NewStore(connection *infra.ScyllaClusterConnection) (Rows, error) {
	if connection == nil {
		return nil, errors.New("connection cannot be nil")
	}
	meta, err := connection.GetMeta()
	if err != nil {
		return nil, err
	}
	session, err := connection.GetConn()
	if err != nil {
		return nil, err
	}
	return &gocqlStore{
		keySpace: meta["keyspace"].(string),
		session:  session.(*gocql.Session),
	}, nil
}

func (s *gocqlStore) FetchRow(ctx context.Context, keyspace, table, keyColumn string, keyValue any, columns []string) (map[string]any, error) {
	if keyspace == "" {
		keyspace = s.keySpace
	}
	if !identifierPattern.MatchString(keyspace) || !identifierPattern.MatchString(table) || !identifierPattern.MatchString(keyColumn) {
		return nil, fmt.Errorf("invalid table reference %s.%s (%s)", keyspace, table, keyColumn)
	}
	for _, column := range columns {
		if !identifierPattern.MatchString(column) {
			return nil, fmt.Errorf("invalid column name %q", column)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s.%s WHERE %s = ? LIMIT 1",
		strings.Join(columns, ", "), keyspace, table, keyColumn)
	row := make(map[string]any)
	err := s.session.Query(query, keyValue).WithContext(ctx).MapScan(row)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}
