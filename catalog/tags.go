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

type TagRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db, now: time.Now}
}

const tagSelect = `
	SELECT t.id, t.name, t.description,
		(SELECT COUNT(*) FROM products p
			WHERE EXISTS (SELECT 1 FROM json_each(p.tags) j WHERE j.value = t.id)) AS usage_count,
		t.created_at, t.updated_at
	FROM tags t
`

func scanTag(s rowScanner) (*Tag, error) {
	var t Tag
	if err := s.Scan(&t.ID, &t.Name, &t.Description, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TagRepository) List(ctx context.Context, page Page, keyword string) (*List[Tag], error) {
	page = page.normalize()
	clause, args := "", []any{}
	if kw := strings.TrimSpace(keyword); kw != "" {
		clause = ` WHERE t.name LIKE ? ESCAPE '\'`
		args = append(args, likePattern(kw))
	}

	exec := getExecutor(ctx, r.db)
	var total int
	if err := exec.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags t"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}

	rows, err := exec.QueryContext(ctx, tagSelect+clause+" ORDER BY t.created_at DESC, t.id LIMIT ? OFFSET ?",
		append(args, page.Size, page.offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	items := []Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return &List[Tag]{Items: items, Total: total, Page: page.Num, PageSize: page.Size}, nil
}

func (r *TagRepository) Get(ctx context.Context, id string) (*Tag, error) {
	t, err := scanTag(getExecutor(ctx, r.db).QueryRowContext(ctx, tagSelect+" WHERE t.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tag %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return t, nil
}

func (r *TagRepository) Create(ctx context.Context, t *Tag) (*Tag, error) {
	in := *t
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	in.ID = uuid.NewString()
	now := r.now().UTC()

	_, err := getExecutor(ctx, r.db).ExecContext(ctx,
		"INSERT INTO tags (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		in.ID, in.Name, in.Description, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}
	return r.Get(ctx, in.ID)
}

func (r *TagRepository) Update(ctx context.Context, id string, t *Tag) error {
	in := *t
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(&in); err != nil {
		return err
	}
	res, err := getExecutor(ctx, r.db).ExecContext(ctx,
		"UPDATE tags SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		in.Name, in.Description, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}
	return requireAffected(res, "tag", id)
}

func (r *TagRepository) Delete(ctx context.Context, id string) error {
	res, err := getExecutor(ctx, r.db).ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return requireAffected(res, "tag", id)
}
