package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store bundles the repositories sharing one database.
type Store struct {
	db         *sql.DB
	Products   *ProductRepository
	Categories *CategoryRepository
	Tags       *TagRepository
	Users      *UserRepository
	Config     *ConfigRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		Products:   NewProductRepository(db),
		Categories: NewCategoryRepository(db),
		Tags:       NewTagRepository(db),
		Users:      NewUserRepository(db),
		Config:     NewConfigRepository(db),
	}
}

// OpenStore opens the database at path and wraps it in a Store.
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Counts holds the collection sizes shown on the dashboard.
type Counts struct {
	Products   int `json:"products"`
	Categories int `json:"categories"`
	Tags       int `json:"tags"`
	Users      int `json:"users"`
}

func (s *Store) Counts(ctx context.Context) (*Counts, error) {
	var c Counts
	err := getExecutor(ctx, s.db).QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM tags),
			(SELECT COUNT(*) FROM users)`,
	).Scan(&c.Products, &c.Categories, &c.Tags, &c.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to count collections: %w", err)
	}
	return &c, nil
}

// Seed stores value under key unless the key already exists.
func (s *Store) Seed(ctx context.Context, key string, value any) error {
	_, err := s.Config.Get(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.Config.Set(ctx, key, value, "")
}
