package database

import (
	"context"
	"errors"

	"github.com/Meesho/BharatMLStack/weaver/pkg/infra"
	"gorm.io/gorm"
)

// Store runs a parameterized query and returns the rows as generic maps.
// The adapter only ever reads through this interface so tests can swap in
// a fake without a live database.
type Store interface {
	Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore wraps the shared SQL connection from pkg/infra.
func NewStore(connection *infra.SQLConnection) (Store, error) {
	if connection == nil {
		return nil, errors.New("connection cannot be nil")
	}
	session, err := connection.GetConn()
	if err != nil {
		return nil, err
	}
	return &gormStore{db: session.(*gorm.DB)}, nil
}

func (s *gormStore) Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	rows := make([]map[string]any, 0)
	result := s.db.WithContext(ctx).Raw(query, args).Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}
