package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CategoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db, now: time.Now}
}

const categorySelect = `
	SELECT c.id, c.name, c.description, c.icon, c.sort, c.is_active,
		(SELECT COUNT(*) FROM products p
			WHERE EXISTS (SELECT 1 FROM json_each(p.category_ids) j WHERE j.value = c.id)) AS product_count,
		c.created_at, c.updated_at
	FROM categories c
`

func scanCategory(s rowScanner) (*Category, error) {
	var c Category
	err := s.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Sort, &c.IsActive,
		&c.ProductCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns categories ordered by sort, then name.
func (r *CategoryRepository) List(ctx context.Context, page Page, keyword string) (*List[Category], error) {
	page = page.normalize()
	clause, args := "", []any{}
	if kw := strings.TrimSpace(keyword); kw != "" {
		clause = ` WHERE c.name LIKE ? ESCAPE '\'`
		args = append(args, likePattern(kw))
	}

	exec := getExecutor(ctx, r.db)
	var total int
	if err := exec.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories c"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}

	rows, err := exec.QueryContext(ctx, categorySelect+clause+" ORDER BY c.sort, c.name LIMIT ? OFFSET ?",
		append(args, page.Size, page.offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	items := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return &List[Category]{Items: items, Total: total, Page: page.Num, PageSize: page.Size}, nil
}

func (r *CategoryRepository) Get(ctx context.Context, id string) (*Category, error) {
	row := getExecutor(ctx, r.db).QueryRowContext(ctx, categorySelect+" WHERE c.id = ?", id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *Category) (*Category, error) {
	in := *c
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	in.ID = uuid.NewString()
	now := r.now().UTC()

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO categories (id, name, description, icon, sort, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Name, in.Description, in.Icon, in.Sort, in.IsActive, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}
	return r.Get(ctx, in.ID)
}

func (r *CategoryRepository) Update(ctx context.Context, id string, c *Category) error {
	in := *c
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(&in); err != nil {
		return err
	}
	res, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE categories SET name = ?, description = ?, icon = ?, sort = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		in.Name, in.Description, in.Icon, in.Sort, in.IsActive, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireAffected(res, "category", id)
}

func (r *CategoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := getExecutor(ctx, r.db).ExecContext(ctx,
		"UPDATE categories SET is_active = ?, updated_at = ? WHERE id = ?", active, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to toggle category: %w", err)
	}
	return requireAffected(res, "category", id)
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := getExecutor(ctx, r.db).ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(res, "category", id)
}
