package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trinislearning/hit339/internal/domain"
	db "github.com/trinislearning/hit339/internal/repository"
)

func setupPostgres(t *testing.T) *db.Repository {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	repo, err := db.NewPostgresRepository(&db.Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	})
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations("./migrations"))

	t.Cleanup(func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return repo
}

func TestPostgres_CheckoutWrites(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	p := &domain.Product{Name: "Lego Race Car", Category: "Toy", Price: decimal.RequireFromString("49.99"), Stock: 2}
	require.NoError(t, repo.CreateProduct(ctx, p))
	user := &domain.User{Email: "buyer@example.com", PasswordHash: "x", Role: domain.RoleCustomer}
	require.NoError(t, repo.CreateUser(ctx, user))

	order := &domain.Order{
		UserID: user.ID,
		Total:  decimal.RequireFromString("99.98"),
		Items:  []domain.OrderItem{{ProductID: p.ID, ProductName: p.Name, Quantity: 2, UnitPrice: p.Price}},
	}
	require.NoError(t, repo.WithinTx(ctx, func(tx db.Tx) error {
		if err := tx.DecrementStock(ctx, p.ID, 2); err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return tx.AddOutboxEvent(ctx, &domain.OutboxEvent{
			ID:          "6f9619ff-8b86-d011-b42d-00c04fc964ff",
			AggregateID: "1",
			EventType:   domain.EventOrderPlaced,
			Payload:     []byte(`{"order_id":1}`),
		})
	}))

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	err = repo.WithinTx(ctx, func(tx db.Tx) error { return tx.DecrementStock(ctx, p.ID, 1) })
	assert.ErrorIs(t, err, db.ErrInsufficientStock)

	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(decimal.RequireFromString("99.98")))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	race, err := repo.ListProducts(ctx, domain.ProductFilter{Query: "race"})
	require.NoError(t, err)
	assert.Len(t, race, 1)

	dup := &domain.User{Email: "BUYER@example.com", PasswordHash: "x", Role: domain.RoleCustomer}
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), db.ErrEmailTaken)
}

func TestPostgres_ListProductsFoldsCase(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	for _, name := range []string{"cherry", "Banana", "apple", "Éclair Kit"} {
		p := &domain.Product{Name: name, Category: "Food", Price: decimal.RequireFromString("1.00"), Stock: 1}
		require.NoError(t, repo.CreateProduct(ctx, p))
	}

	all, err := repo.ListProducts(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "apple", all[0].Name)
	assert.Equal(t, "Banana", all[1].Name)
	assert.Equal(t, "cherry", all[2].Name)

	found, err := repo.ListProducts(ctx, domain.ProductFilter{Query: "BAN"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Banana", found[0].Name)
}
