package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrPostNotFound    = errors.New("blog post not found")
	ErrDuplicateSlug   = errors.New("blog post slug already in use")
)

type RepoInterface interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	ListPosts(ctx context.Context, publishedOnly bool) ([]*domain.BlogPost, error)
	GetPostBySlug(ctx context.Context, slug string) (*domain.BlogPost, error)
	CreatePost(ctx context.Context, p *domain.BlogPost) (int64, error)
	UpdatePost(ctx context.Context, p *domain.BlogPost) error
	DeletePost(ctx context.Context, id int64) error

	Close() error
	RunMigrations(string) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, name, description, price, image_url, category, in_stock, created_at
		FROM products
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price,
			&p.ImageURL, &p.Category, &p.InStock, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, description, price, image_url, category, in_stock, created_at
		FROM products
		WHERE id = ?
	`

	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description,
		&p.Price, &p.ImageURL, &p.Category, &p.InStock, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) (int64, error) {
	query := `
		INSERT INTO products (name, description, price, image_url, category, in_stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	res, err := r.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Price, p.ImageURL, p.Category, p.InStock)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = ?, description = ?, price = ?, image_url = ?, category = ?, in_stock = ?
		WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Price, p.ImageURL, p.Category, p.InStock, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return checkAffected(res, ErrProductNotFound)
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return checkAffected(res, ErrProductNotFound)
}

func (r *Repository) ListPosts(ctx context.Context, publishedOnly bool) ([]*domain.BlogPost, error) {
	query := `
		SELECT id, title, slug, body, published, created_at, updated_at
		FROM blog_posts
	`
	if publishedOnly {
		query += ` WHERE published = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query blog posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.BlogPost
	for rows.Next() {
		p := &domain.BlogPost{}
		err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Body,
			&p.Published, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blog post: %w", err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return posts, nil
}

func (r *Repository) GetPostBySlug(ctx context.Context, slug string) (*domain.BlogPost, error) {
	query := `
		SELECT id, title, slug, body, published, created_at, updated_at
		FROM blog_posts
		WHERE slug = ?
	`

	p := &domain.BlogPost{}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&p.ID, &p.Title, &p.Slug,
		&p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query blog post: %w", err)
	}
	return p, nil
}

func (r *Repository) CreatePost(ctx context.Context, p *domain.BlogPost) (int64, error) {
	query := `
		INSERT INTO blog_posts (title, slug, body, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	res, err := r.db.ExecContext(ctx, query, p.Title, p.Slug, p.Body, p.Published)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateSlug
		}
		return 0, fmt.Errorf("failed to insert blog post: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) UpdatePost(ctx context.Context, p *domain.BlogPost) error {
	query := `
		UPDATE blog_posts
		SET title = ?, slug = ?, body = ?, published = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, query, p.Title, p.Slug, p.Body, p.Published, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to update blog post: %w", err)
	}
	return checkAffected(res, ErrPostNotFound)
}

func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blog post: %w", err)
	}
	return checkAffected(res, ErrPostNotFound)
}

func checkAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures as plain errors.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
