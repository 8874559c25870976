package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// List returns users newest first, optionally filtered by nick name.
func (r *UserRepository) List(ctx context.Context, page Page, keyword string) (*List[User], error) {
	page = page.normalize()
	clause, args := "", []any{}
	if kw := strings.TrimSpace(keyword); kw != "" {
		// LIKE is case-insensitive for ASCII in SQLite
		clause = ` WHERE nick_name LIKE ? ESCAPE '\'`
		args = append(args, likePattern(kw))
	}

	exec := getExecutor(ctx, r.db)
	var total int
	if err := exec.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := exec.QueryContext(ctx,
		"SELECT id, openid, nick_name, avatar_url, is_admin, created_at FROM users"+clause+
			" ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		append(args, page.Size, page.offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	items := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.OpenID, &u.NickName, &u.AvatarURL, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return &List[User]{Items: items, Total: total, Page: page.Num, PageSize: page.Size}, nil
}

// Upsert registers a user by openid, updating profile fields when it already exists.
func (r *UserRepository) Upsert(ctx context.Context, u *User) error {
	if err := validateStruct(u); err != nil {
		return err
	}
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (id, openid, nick_name, avatar_url, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(openid) DO UPDATE SET
			nick_name = excluded.nick_name,
			avatar_url = excluded.avatar_url`,
		uuid.NewString(), u.OpenID, u.NickName, u.AvatarURL, u.IsAdmin, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// SetAdmin grants or revokes admin rights. An unknown openid is ErrNotFound.
func (r *UserRepository) SetAdmin(ctx context.Context, openid string, isAdmin bool) error {
	if openid == "" {
		return fmt.Errorf("%w: openid is required", ErrInvalid)
	}
	res, err := getExecutor(ctx, r.db).ExecContext(ctx,
		"UPDATE users SET is_admin = ? WHERE openid = ?", isAdmin, openid)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := requireAffected(res, "user", openid); err != nil {
		return err
	}
	log.Info().Str("openid", openid).Bool("isAdmin", isAdmin).Msg("catalog: admin flag updated")
	return nil
}
