package repository

import (
	"context"
	"errors"

	"github.com/trinislearning/hit339/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email is already registered")
	ErrInsufficientStock = errors.New("insufficient stock")
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// ProductReader is the read side the cart and checkout need from the catalog.
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []int64) ([]*domain.Product, error)
}

type ProductRepository interface {
	ProductReader
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type OrderRepository interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}

// Tx holds the writes that must commit or roll back together during checkout.
type Tx interface {
	// DecrementStock lowers stock by qty only if at least qty units remain.
	// It returns ErrInsufficientStock when the guard fails.
	DecrementStock(ctx context.Context, productID int64, qty int) error
	CreateOrder(ctx context.Context, order *domain.Order) error
	AddOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error
}

type UnitOfWork interface {
	// WithinTx runs fn in one transaction. Any error from fn rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type RepoInterface interface {
	ProductRepository
	OrderRepository
	UserRepository
	OutboxRepository
	UnitOfWork
	Ping(ctx context.Context) error
	RunMigrations(migrationsPath string) error
	Close() error
}
