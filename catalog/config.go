package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Well-known configuration keys.
const (
	KeySiteName        = "siteName"
	KeyContactEmail    = "contactEmail"
	KeyAdminVerifyCode = "adminVerifyCode"
	KeyCarousel        = "carousel"
	KeyBanners         = "banners"
)

type ConfigRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db, now: time.Now}
}

// GetAll returns every configuration value keyed by name.
func (r *ConfigRepository) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, "SELECT key, value FROM system_config")
	if err != nil {
		return nil, fmt.Errorf("failed to list system config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan system config: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate system config: %w", err)
	}
	return out, nil
}

func (r *ConfigRepository) Get(ctx context.Context, key string) (*ConfigEntry, error) {
	var (
		e     ConfigEntry
		value string
	)
	err := getExecutor(ctx, r.db).QueryRowContext(ctx,
		"SELECT key, value, description, updated_at FROM system_config WHERE key = ?", key,
	).Scan(&e.Key, &value, &e.Description, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: config %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	e.Value = json.RawMessage(value)
	return &e, nil
}

// Set stores value (marshaled to JSON) under key. An empty description keeps the
// existing one.
func (r *ConfigRepository) Set(ctx context.Context, key string, value any, description string) error {
	var raw json.RawMessage
	switch v := value.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return fmt.Errorf("%w: config %s is not valid JSON", ErrInvalid, key)
		}
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: config %s: %w", ErrInvalid, key, err)
		}
		raw = b
	}
	entry := ConfigEntry{Key: strings.TrimSpace(key), Value: raw, Description: description}
	if err := validateStruct(&entry); err != nil {
		return err
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO system_config (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = CASE WHEN excluded.description = '' THEN system_config.description ELSE excluded.description END,
			updated_at = excluded.updated_at`,
		entry.Key, string(entry.Value), entry.Description, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set config %s: %w", entry.Key, err)
	}
	return nil
}

// String decodes a string value; non-string JSON values are returned in their
// literal form. Missing keys yield "".
func (r *ConfigRepository) String(ctx context.Context, key string) (string, error) {
	e, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(e.Value, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	return strings.TrimSpace(string(e.Value)), nil
}

// StringList decodes a list value such as the carousel file IDs. Missing keys and
// non-list values yield nil.
func (r *ConfigRepository) StringList(ctx context.Context, key string) ([]string, error) {
	e, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(e.Value, &out); err != nil {
		return nil, nil
	}
	return out, nil
}

// ValidateAdminPassword compares input with the stored admin verification code,
// ignoring surrounding whitespace. No configured code means no login.
func (r *ConfigRepository) ValidateAdminPassword(ctx context.Context, input string) (bool, error) {
	code, err := r.String(ctx, KeyAdminVerifyCode)
	if err != nil {
		return false, err
	}
	if code == "" {
		return false, nil
	}
	return strings.TrimSpace(input) == code, nil
}
