package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.ProductSize{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Delivery{},
	))
	return conn
}

func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus) models.Order {
	t.Helper()
	order := models.Order{
		ID:             uuid.New(),
		UserID:         userID,
		Status:         status,
		Subtotal:       decimal.RequireFromString("1000.00"),
		DeliveryFee:    decimal.RequireFromString("1000.00"),
		VATRate:        decimal.NewFromInt(20),
		VATAmount:      decimal.RequireFromString("400.00"),
		TaxRate:        decimal.NewFromInt(13),
		TaxAmount:      decimal.RequireFromString("312.00"),
		Total:          decimal.RequireFromString("2400.00"),
		CanBeCancelled: true,
	}
	require.NoError(t, conn.Create(&order).Error)
	return order
}

func TestRepository_GetByIDPreloadsAssociations(t *testing.T) {
	t.Parallel()

	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPaid)

	items := []models.OrderItem{{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: uuid.New(),
		Name:      "widget",
		UnitPrice: decimal.RequireFromString("1000.00"),
		Quantity:  1,
		LineTotal: decimal.RequireFromString("1000.00"),
	}}
	require.NoError(t, repo.CreateItems(ctx, items))

	payment := models.Payment{
		ID:      uuid.New(),
		OrderID: order.ID,
		Method:  enums.PaymentMethodBalance,
		Status:  enums.PaymentStatusPaid,
		Amount:  order.Total,
	}
	require.NoError(t, conn.Create(&payment).Error)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Len(t, got.Items, 1)
	require.NotNil(t, got.Payment)
	assert.Equal(t, enums.PaymentStatusPaid, got.Payment.Status)
}

func TestRepository_GetByIDMissingReturnsNil(t *testing.T) {
	t.Parallel()

	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)

	got, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_MarkCancelled(t *testing.T) {
	t.Parallel()

	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPaid)

	now := time.Now()
	require.NoError(t, repo.MarkCancelled(ctx, order.ID, now))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, enums.OrderStatusCancelled, got.Status)
	assert.False(t, got.CanBeCancelled)
	require.NotNil(t, got.CancelledAt)
}

func TestRepository_ListByUserOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	userID := uuid.New()
	first := seedOrder(t, conn, userID, enums.OrderStatusPaid)
	require.NoError(t, conn.Model(&models.Order{}).
		Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)
	second := seedOrder(t, conn, userID, enums.OrderStatusProcessing)
	seedOrder(t, conn, uuid.New(), enums.OrderStatusPaid)

	list, err := repo.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestRepository_DeliveryRoundTrip(t *testing.T) {
	t.Parallel()

	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPaid)

	shipped := time.Now()
	carrier := "dhl"
	require.NoError(t, repo.CreateDelivery(ctx, &models.Delivery{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Carrier:   &carrier,
		ShippedAt: &shipped,
	}))

	delivery, err := repo.GetDelivery(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	assert.Nil(t, delivery.DeliveredAt)

	delivered := time.Now()
	delivery.DeliveredAt = &delivered
	require.NoError(t, repo.SaveDelivery(ctx, delivery))

	delivery, err = repo.GetDelivery(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, delivery.DeliveredAt)
}
