package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ImageField names one of the image lists of a product.
type ImageField string

const (
	FieldImages            ImageField = "images"
	FieldDescriptionImages ImageField = "descriptionImages"
)

func ParseImageField(s string) (ImageField, error) {
	switch ImageField(s) {
	case FieldImages, FieldDescriptionImages:
		return ImageField(s), nil
	}
	return "", fmt.Errorf("%w: unknown image field %q", ErrInvalid, s)
}

// Product listing filters.
const (
	StatusAll         = "all"
	StatusOn          = "on"
	StatusOff         = "off"
	StatusUnavailable = "unavailable"
)

type ProductQuery struct {
	Page
	Keyword    string
	Status     string
	CategoryID string
}

type ProductRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db, now: time.Now}
}

const productColumns = `spu_id, title, price, origin_price, stock, images, primary_image,
	is_put_on_sale, available, category_ids, tags, description, description_images,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (*Product, error) {
	var (
		p                            Product
		images, cats, tags, descImgs stringList
	)
	err := s.Scan(
		&p.SpuID, &p.Title, &p.Price, &p.OriginPrice, &p.Stock, &images, &p.PrimaryImage,
		&p.IsPutOnSale, &p.Available, &cats, &tags, &p.Description, &descImgs,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Images = images
	p.CategoryIDs = cats
	p.Tags = tags
	p.DescriptionImages = descImgs
	return &p, nil
}

// List returns one page of products, most recently updated first.
func (r *ProductRepository) List(ctx context.Context, q ProductQuery) (*List[Product], error) {
	page := q.Page.normalize()

	var (
		where []string
		args  []any
	)
	switch q.Status {
	case "", StatusAll:
	case StatusOn:
		where = append(where, "is_put_on_sale = 1 AND available = 1")
	case StatusOff:
		where = append(where, "is_put_on_sale = 0")
	case StatusUnavailable:
		where = append(where, "available = 0")
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, q.Status)
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		where = append(where, `title LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(kw))
	}
	if q.CategoryID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(products.category_ids) j WHERE j.value = ?)")
		args = append(args, q.CategoryID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	exec := getExecutor(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	rows, err := exec.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products"+clause+" ORDER BY updated_at DESC, spu_id LIMIT ? OFFSET ?",
		append(args, page.Size, page.offset())...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	items := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return &List[Product]{Items: items, Total: total, Page: page.Num, PageSize: page.Size}, nil
}

func (r *ProductRepository) Get(ctx context.Context, spuID string) (*Product, error) {
	if spuID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrInvalid)
	}
	row := getExecutor(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE spu_id = ?", spuID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, spuID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

const insertProductQuery = `
	INSERT INTO products (` + productColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateProductQuery = `
	UPDATE products SET
		title = ?, price = ?, origin_price = ?, stock = ?, images = ?, primary_image = ?,
		is_put_on_sale = ?, available = ?, category_ids = ?, tags = ?, description = ?,
		description_images = ?, updated_at = ?
	WHERE spu_id = ?
`

// Save creates the product when it has no SpuID and updates it otherwise. The
// stored product is returned.
func (r *ProductRepository) Save(ctx context.Context, p *Product) (*Product, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: product cannot be nil", ErrInvalid)
	}
	in := *p
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() || in.OriginPrice.IsNegative() {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalid)
	}

	in.Images = nonNil(in.Images)
	in.CategoryIDs = nonNil(in.CategoryIDs)
	in.Tags = nonNil(in.Tags)
	in.DescriptionImages = nonNil(in.DescriptionImages)
	if in.OriginPrice.IsZero() {
		in.OriginPrice = in.Price
	}
	in.PrimaryImage = primaryOf(in.Images)
	now := r.now().UTC()

	var saved *Product
	err := RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		exec := getExecutor(txCtx, r.db)
		if in.SpuID == "" {
			in.SpuID = uuid.NewString()
			_, err := exec.ExecContext(txCtx, insertProductQuery,
				in.SpuID, in.Title, in.Price, in.OriginPrice, in.Stock, stringList(in.Images), in.PrimaryImage,
				in.IsPutOnSale, in.Available, stringList(in.CategoryIDs), stringList(in.Tags), in.Description,
				stringList(in.DescriptionImages), now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert product: %w", err)
			}
		} else {
			res, err := exec.ExecContext(txCtx, updateProductQuery,
				in.Title, in.Price, in.OriginPrice, in.Stock, stringList(in.Images), in.PrimaryImage,
				in.IsPutOnSale, in.Available, stringList(in.CategoryIDs), stringList(in.Tags), in.Description,
				stringList(in.DescriptionImages), now, in.SpuID,
			)
			if err != nil {
				return fmt.Errorf("failed to update product: %w", err)
			}
			if err := requireAffected(res, "product", in.SpuID); err != nil {
				return err
			}
		}
		var err error
		saved, err = r.Get(txCtx, in.SpuID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("spuId", saved.SpuID).Str("title", saved.Title).Msg("catalog: product saved")
	return saved, nil
}

func (r *ProductRepository) Delete(ctx context.Context, spuID string) error {
	if spuID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalid)
	}
	res, err := getExecutor(ctx, r.db).ExecContext(ctx, "DELETE FROM products WHERE spu_id = ?", spuID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(res, "product", spuID)
}

// Images returns the current content of one image list.
func (r *ProductRepository) Images(ctx context.Context, spuID string, field ImageField) ([]string, error) {
	p, err := r.Get(ctx, spuID)
	if err != nil {
		return nil, err
	}
	if field == FieldDescriptionImages {
		return p.DescriptionImages, nil
	}
	return p.Images, nil
}

// UpdateImages replaces one image list. Writing FieldImages also refreshes the
// primary image.
func (r *ProductRepository) UpdateImages(ctx context.Context, spuID string, field ImageField, images []string) error {
	if _, err := ParseImageField(string(field)); err != nil {
		return err
	}
	images = nonNil(images)
	now := r.now().UTC()
	exec := getExecutor(ctx, r.db)

	var (
		res sql.Result
		err error
	)
	if field == FieldImages {
		res, err = exec.ExecContext(ctx,
			"UPDATE products SET images = ?, primary_image = ?, updated_at = ? WHERE spu_id = ?",
			stringList(images), primaryOf(images), now, spuID)
	} else {
		res, err = exec.ExecContext(ctx,
			"UPDATE products SET description_images = ?, updated_at = ? WHERE spu_id = ?",
			stringList(images), now, spuID)
	}
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", field, err)
	}
	return requireAffected(res, "product", spuID)
}

// ImportDescriptionImages appends the product's images to its description images,
// keeping the first occurrence of every reference.
func (r *ProductRepository) ImportDescriptionImages(ctx context.Context, spuID string) ([]string, error) {
	var merged []string
	err := RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		p, err := r.Get(txCtx, spuID)
		if err != nil {
			return err
		}
		merged = MergeUnique(p.DescriptionImages, p.Images)
		return r.UpdateImages(txCtx, spuID, FieldDescriptionImages, merged)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeUnique concatenates lists, dropping empty and repeated entries.
func MergeUnique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, l := range lists {
		for _, s := range l {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func primaryOf(images []string) string {
	if len(images) == 0 {
		return ""
	}
	return images[0]
}

func requireAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return nil
}
