// Package catalog is the authoritative store of purchasable items and their current prices.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	db  *sql.DB
	now func() time.Time

	mu        sync.RWMutex
	onChanged []func(itemID int64)
}

type RepoInterface interface {
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	ListItems(ctx context.Context) ([]*domain.Item, error)
	CreateItem(ctx context.Context, item *domain.Item) (int64, error)
	UpdatePrice(ctx context.Context, id int64, price domain.Money) error
	DeleteItem(ctx context.Context, id int64) error
	Close() error
	RunMigrations() error
}

func NewRepository(dbPath string) (*Repository, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const selectItems = `
		SELECT id, name, category, price_amount, price_currency, image_url, created_at, updated_at
		FROM items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var (
		item           domain.Item
		amount, curISO string
	)
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Category,
		&amount,
		&curISO,
		&item.ImageURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	price, err := domain.ParseMoney(amount, curISO)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", item.ID, err)
	}
	item.Price = price
	return &item, nil
}

func (r *Repository) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	row := r.db.QueryRowContext(ctx, selectItems+` WHERE id = ?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ItemNotFoundError{ItemID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return item, nil
}

func (r *Repository) ListItems(ctx context.Context) ([]*domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, selectItems+` ORDER BY category, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// CreateItem is used by catalog administration and seeding.
func (r *Repository) CreateItem(ctx context.Context, item *domain.Item) (int64, error) {
	if strings.TrimSpace(item.Name) == "" {
		return 0, fmt.Errorf("%w: item name is required", domain.ErrValidation)
	}
	if !item.Price.IsPositive() {
		return 0, fmt.Errorf("%w: item price must be positive", domain.ErrValidation)
	}

	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO items (name, category, price_amount, price_currency, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Name,
		item.Category,
		item.Price.Amount.String(),
		item.Price.Currency.String(),
		item.ImageURL,
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read item id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return id, nil
}

// UpdatePrice changes the current price. Orders already placed keep their snapshot.
func (r *Repository) UpdatePrice(ctx context.Context, id int64, price domain.Money) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: item price must be positive", domain.ErrValidation)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET price_amount = ?, price_currency = ?, updated_at = ? WHERE id = ?`,
		price.Amount.String(),
		price.Currency.String(),
		r.now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}
	r.notifyChanged(id)
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}
	r.notifyChanged(id)
	return nil
}

// OnChange registers fn to run after an item's price changes or the item is deleted
// through this repository.
func (r *Repository) OnChange(fn func(itemID int64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChanged = append(r.onChanged, fn)
}

func (r *Repository) notifyChanged(id int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.onChanged {
		fn(id)
	}
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &domain.ItemNotFoundError{ItemID: id}
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
