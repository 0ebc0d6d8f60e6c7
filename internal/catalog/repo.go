package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/db"
)

// ErrNotFound is returned when a product id has no catalog row.
var ErrNotFound = errors.New("catalog: product not found")

// Repo reads catalog rows including discounts and fee links.
type Repo struct {
	DB db.DBTX
}

// NewRepo constructs a catalog repo over the given connection surface.
func NewRepo(dbtx db.DBTX) Repo {
	return Repo{DB: dbtx}
}

const productColumns = `p.id, p.name, p.base_price, d.kind, d.value`

// ProductsByID loads products with their discount and fee links keyed by id.
// Missing ids are simply absent from the result.
func (r Repo) ProductsByID(ctx context.Context, ids []int64) (map[int64]Product, error) {
	if len(ids) == 0 {
		return map[int64]Product{}, nil
	}
	rows, err := r.DB.Query(ctx, fmt.Sprintf(`SELECT %s
FROM products p
LEFT JOIN discounts d ON d.product_id = p.id
WHERE p.id = ANY($1)`, productColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("catalog: query products: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachFeeLinks(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Product loads a single product or ErrNotFound.
func (r Repo) Product(ctx context.Context, id int64) (Product, error) {
	products, err := r.ProductsByID(ctx, []int64{id})
	if err != nil {
		return Product{}, err
	}
	product, ok := products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return product, nil
}

// List returns a page of products ordered by id.
func (r Repo) List(ctx context.Context, limit, offset int) ([]Product, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.Query(ctx, fmt.Sprintf(`SELECT %s
FROM products p
LEFT JOIN discounts d ON d.product_id = p.id
ORDER BY p.id
LIMIT $1 OFFSET $2`, productColumns), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]Product, limit)
	order := make([]int64, 0, limit)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byID[product.ID] = product
		order = append(order, product.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachFeeLinks(ctx, byID); err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// Count reports the catalog size for pagination metadata.
func (r Repo) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return 0, fmt.Errorf("catalog: count products: %w", err)
	}
	return total, nil
}

func (r Repo) attachFeeLinks(ctx context.Context, products map[int64]Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	rows, err := r.DB.Query(ctx, `SELECT pf.product_id, f.id, f.name, f.category, f.kind, f.value
FROM product_fees pf
JOIN fees f ON f.id = pf.fee_id
WHERE pf.product_id = ANY($1)
ORDER BY f.id`, ids)
	if err != nil {
		return fmt.Errorf("catalog: query fee links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID int64
			link      FeeLink
		)
		if err := rows.Scan(&productID, &link.FeeID, &link.Name, &link.Category, &link.Kind, &link.Value); err != nil {
			return err
		}
		product := products[productID]
		product.FeeLinks = append(product.FeeLinks, link)
		products[productID] = product
	}
	return rows.Err()
}

func scanProduct(rows pgx.Rows) (Product, error) {
	var (
		product       Product
		discountKind  *string
		discountValue *decimal.Decimal
	)
	if err := rows.Scan(&product.ID, &product.Name, &product.BasePrice, &discountKind, &discountValue); err != nil {
		return Product{}, err
	}
	if discountKind != nil && discountValue != nil {
		product.Discount = &Discount{Kind: *discountKind, Value: *discountValue}
	}
	return product, nil
}
