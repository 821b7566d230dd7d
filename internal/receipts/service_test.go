package receipts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/internal/pricing"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:receipts_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Receipt{}, &models.ReceiptLine{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(conn)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc, conn
}

func TestIssue_PerLineVATAndDeliveryLine(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	order := &models.Order{ID: uuid.New(), UserID: uuid.New()}
	label := "M"
	items := []models.OrderItem{
		{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: uuid.New(),
			Name:      "hoodie",
			SizeLabel: &label,
			UnitPrice: decimal.RequireFromString("1500.00"),
			Quantity:  2,
			LineTotal: decimal.RequireFromString("3000.00"),
		},
		{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: uuid.New(),
			Name:      "socks",
			UnitPrice: decimal.RequireFromString("33.33"),
			Quantity:  3,
			LineTotal: decimal.RequireFromString("99.99"),
		},
	}
	quote := &pricing.Quote{
		Subtotal:    decimal.RequireFromString("3099.99"),
		Discount:    decimal.RequireFromString("310.00"),
		DeliveryFee: decimal.RequireFromString("1000.00"),
		VATRate:     decimal.NewFromInt(20),
		Total:       decimal.RequireFromString("4547.99"),
	}

	receipt, err := svc.Issue(ctx, nil, order, items, quote, enums.PaymentMethodBalance)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if receipt.Status != enums.ReceiptStatusExecuted {
		t.Fatalf("status = %s", receipt.Status)
	}
	if !receipt.Subtotal.Equal(quote.Subtotal) ||
		!receipt.DiscountAmount.Equal(quote.Discount) ||
		!receipt.DeliveryCost.Equal(quote.DeliveryFee) ||
		!receipt.VATRate.Equal(quote.VATRate) ||
		!receipt.Total.Equal(quote.Total) {
		t.Fatalf("quote snapshot not carried onto receipt: %+v", receipt)
	}
	if len(receipt.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(receipt.Lines))
	}
	if receipt.Lines[0].Title != "hoodie (M)" {
		t.Fatalf("title = %q", receipt.Lines[0].Title)
	}
	// per-line: 600.00 + Round2(19.998)=20.00 + 200.00 = 820.00
	if !receipt.Lines[0].VATAmount.Equal(decimal.RequireFromString("600.00")) {
		t.Fatalf("line 0 vat = %s", receipt.Lines[0].VATAmount)
	}
	if !receipt.Lines[1].VATAmount.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("line 1 vat = %s", receipt.Lines[1].VATAmount)
	}
	last := receipt.Lines[2]
	if last.Title != "Delivery" || last.Quantity != 1 || !last.LineTotal.Equal(quote.DeliveryFee) {
		t.Fatalf("unexpected delivery line: %+v", last)
	}
	if !receipt.VATAmount.Equal(decimal.RequireFromString("820.00")) {
		t.Fatalf("receipt vat = %s, want 820.00", receipt.VATAmount)
	}
}

func TestAnnul_FlipsStatusOnly(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	order := &models.Order{ID: uuid.New(), UserID: uuid.New()}
	items := []models.OrderItem{{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: uuid.New(),
		Name:      "mug",
		UnitPrice: decimal.RequireFromString("250.00"),
		Quantity:  1,
		LineTotal: decimal.RequireFromString("250.00"),
	}}
	quote := &pricing.Quote{
		DeliveryFee: decimal.RequireFromString("1000.00"),
		VATRate:     decimal.NewFromInt(20),
		Total:       decimal.RequireFromString("1500.00"),
	}

	issued, err := svc.Issue(ctx, nil, order, items, quote, enums.PaymentMethodCash)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if err := svc.Annul(ctx, nil, order.ID); err != nil {
		t.Fatalf("Annul error: %v", err)
	}

	got, err := svc.GetByOrderID(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetByOrderID error: %v", err)
	}
	if got.Status != enums.ReceiptStatusAnnulled {
		t.Fatalf("status = %s", got.Status)
	}
	if len(got.Lines) != len(issued.Lines) {
		t.Fatalf("lines changed on annul: %d vs %d", len(got.Lines), len(issued.Lines))
	}
	if !got.Total.Equal(issued.Total) || !got.VATAmount.Equal(issued.VATAmount) {
		t.Fatal("amounts changed on annul")
	}
}

func TestAnnul_MissingReceiptIsNoop(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	if err := svc.Annul(context.Background(), nil, uuid.New()); err != nil {
		t.Fatalf("Annul error: %v", err)
	}
}
