package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Page selects one page of a listing. Num starts at 1.
type Page struct {
	Num  int `json:"page"`
	Size int `json:"pageSize"`
}

func (p Page) normalize() Page {
	if p.Num < 1 {
		p.Num = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Num - 1) * p.Size
}

// List is one page of results plus the total number of matches.
type List[T any] struct {
	Items    []T `json:"list"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type Product struct {
	SpuID             string          `json:"spuId"`
	Title             string          `json:"title" validate:"required,max=200"`
	Price             decimal.Decimal `json:"price"`
	OriginPrice       decimal.Decimal `json:"originPrice"`
	Stock             int             `json:"stock" validate:"gte=0"`
	Images            []string        `json:"images"`
	PrimaryImage      string          `json:"primaryImage"`
	IsPutOnSale       bool            `json:"isPutOnSale"`
	Available         bool            `json:"available"`
	CategoryIDs       []string        `json:"categoryIds"`
	Tags              []string        `json:"tags"`
	Description       string          `json:"description"`
	DescriptionImages []string        `json:"descriptionImages"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name" validate:"required,max=100"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	Sort         int       `json:"sort"`
	IsActive     bool      `json:"isActive"`
	ProductCount int       `json:"productCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Tag struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description"`
	UsageCount  int       `json:"usageCount"`
	CreatedAt   time.Time `json:"createTime"`
	UpdatedAt   time.Time `json:"updateTime"`
}

type User struct {
	ID        string    `json:"id"`
	OpenID    string    `json:"openid" validate:"required"`
	NickName  string    `json:"nickName"`
	AvatarURL string    `json:"avatarUrl"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createTime"`
}

// ConfigEntry is one system configuration value. Value holds arbitrary JSON.
type ConfigEntry struct {
	Key         string          `json:"key" validate:"required"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct wraps validation failures in ErrInvalid with a readable message.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// stringList stores a []string as a JSON array column.
type stringList []string

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *stringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = stringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("catalog: cannot scan %T into string list", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("catalog: decode string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(keyword)) + "%"
}
