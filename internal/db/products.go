package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triplebarrelracing/storefront/internal/inventory"
	"github.com/triplebarrelracing/storefront/internal/models"
)

const productColumns = `id, name, description, category, base_price, sale_percent, stock, sizes,
	featured, image_urls, created_at, updated_at`

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

func (s *ProductStore) Create(ctx context.Context, product *Product) error {
	product.NormalizeStock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	sizes, images, err := encodeProductJSON(product)
	if err != nil {
		return err
	}
	stock, err := intToInt32(product.Stock, "stock")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, name, description, category, base_price, sale_percent, stock, sizes, featured, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	return s.pool.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Category,
		toNumeric(product.BasePrice), toNullNumeric(product.SalePercent),
		stock, sizes, product.Featured, images,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
}

// Update replaces every editable column, including stock.
func (s *ProductStore) Update(ctx context.Context, product *Product) error {
	product.NormalizeStock()

	sizes, images, err := encodeProductJSON(product)
	if err != nil {
		return err
	}
	stock, err := intToInt32(product.Stock, "stock")
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $2, description = $3, category = $4, base_price = $5, sale_percent = $6,
		    stock = $7, sizes = $8, featured = $9, image_urls = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err = s.pool.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Category,
		toNumeric(product.BasePrice), toNullNumeric(product.SalePercent),
		stock, sizes, product.Featured, images,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	return notFound(err, "product")
}

func (s *ProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product: %w", ErrNotFound)
	}
	return nil
}

func (s *ProductStore) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		return nil, notFound(err, "product")
	}
	return product, nil
}

func (s *ProductStore) List(ctx context.Context, filter models.ProductFilter) ([]*Product, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.FeaturedOnly {
		conditions = append(conditions, "featured")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY featured DESC, created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// decrementStock removes req.Quantity units only when enough remain. The
// row lock taken by UPDATE serializes concurrent decrements of the same product.
func decrementStock(ctx context.Context, q querier, req inventory.Request) error {
	if req.Quantity <= 0 {
		return inventory.ErrInvalidAmount
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if req.Size == "" {
		tag, err = q.Exec(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1 AND sizes IS NULL AND stock >= $2
		`, req.ProductID, req.Quantity)
	} else {
		tag, err = q.Exec(ctx, `
			UPDATE products
			SET sizes = jsonb_set(sizes, ARRAY[$2::text], to_jsonb((sizes->>$2::text)::int - $3)),
			    updated_at = NOW()
			WHERE id = $1 AND sizes ? $2::text AND (sizes->>$2::text)::int >= $3
		`, req.ProductID, req.Size, req.Quantity)
	}
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, req.ProductID).Scan(&exists); err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if !exists {
		return fmt.Errorf("product: %w", ErrNotFound)
	}
	return inventory.ErrOutOfStock
}

func encodeProductJSON(product *Product) (sizes []byte, images []byte, err error) {
	if product.Sizes != nil {
		sizes, err = json.Marshal(product.Sizes)
		if err != nil {
			return nil, nil, err
		}
	}
	urls := product.ImageURLs
	if urls == nil {
		urls = []string{}
	}
	images, err = json.Marshal(urls)
	if err != nil {
		return nil, nil, err
	}
	return sizes, images, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		product     Product
		basePrice   pgtype.Numeric
		salePercent pgtype.Numeric
		stock       int32
		sizes       []byte
		images      []byte
	)
	if err := row.Scan(
		&product.ID, &product.Name, &product.Description, &product.Category,
		&basePrice, &salePercent, &stock, &sizes, &product.Featured, &images,
		&product.CreatedAt, &product.UpdatedAt,
	); err != nil {
		return nil, err
	}

	product.BasePrice = fromNumeric(basePrice)
	product.SalePercent = fromNullNumeric(salePercent)
	product.Stock = int(stock)
	if sizes != nil {
		if err := json.Unmarshal(sizes, &product.Sizes); err != nil {
			return nil, fmt.Errorf("decode sizes: %w", err)
		}
	}
	if images != nil {
		if err := json.Unmarshal(images, &product.ImageURLs); err != nil {
			return nil, fmt.Errorf("decode image urls: %w", err)
		}
	}
	product.NormalizeStock()
	return &product, nil
}
