package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/internal/activity"
	"github.com/shoplyft/backend/internal/orgledger"
	"github.com/shoplyft/backend/internal/payments"
	"github.com/shoplyft/backend/internal/pricing"
	"github.com/shoplyft/backend/internal/promotions"
	"github.com/shoplyft/backend/internal/receipts"
	"github.com/shoplyft/backend/internal/wallet"
	"github.com/shoplyft/backend/pkg/config"
	"github.com/shoplyft/backend/pkg/db"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
	pkgerrors "github.com/shoplyft/backend/pkg/errors"
)

type testEnv struct {
	svc     Service
	wallets wallet.Service
	org     orgledger.Service
	conn    *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Product{},
		&models.ProductSize{},
		&models.Promotion{},
		&models.UserProfile{},
		&models.UserAddress{},
		&models.SavedCard{},
		&models.BalanceTransaction{},
		&models.CardTransaction{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.OrganizationAccount{},
		&models.OrganizationTransaction{},
		&models.Receipt{},
		&models.ReceiptLine{},
		&models.Delivery{},
		&models.ActivityLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.FromGorm(conn)
	wallets, err := wallet.NewService(client, wallet.NewRepository(conn))
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	promoSvc, err := promotions.NewService(promotions.NewRepository(conn))
	if err != nil {
		t.Fatalf("promotions service: %v", err)
	}
	pricingSvc, err := pricing.NewService(promoSvc, config.Settlement{
		DeliveryFee:  decimal.RequireFromString("1000.00"),
		VATRatePct:   decimal.NewFromInt(20),
		IncomeTaxPct: decimal.NewFromInt(13),
	})
	if err != nil {
		t.Fatalf("pricing service: %v", err)
	}
	paymentsSvc, err := payments.NewService(payments.NewRepository(conn), wallets)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	orgSvc, err := orgledger.NewService(client, orgledger.NewRepository(conn), wallets)
	if err != nil {
		t.Fatalf("org ledger service: %v", err)
	}
	receiptsSvc, err := receipts.NewService(conn)
	if err != nil {
		t.Fatalf("receipts service: %v", err)
	}
	activitySvc, err := activity.NewService(conn)
	if err != nil {
		t.Fatalf("activity service: %v", err)
	}
	svc, err := NewService(client, NewRepository(conn), pricingSvc, paymentsSvc, orgSvc, receiptsSvc, activitySvc, nil)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}

	return &testEnv{svc: svc, wallets: wallets, org: orgSvc, conn: conn}
}

func (e *testEnv) seedProduct(t *testing.T, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:            uuid.New(),
		Name:          "widget",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsAvailable:   true,
	}
	if err := e.conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (e *testEnv) seedProfile(t *testing.T, userID uuid.UUID, balance string) {
	t.Helper()
	profile := models.UserProfile{UserID: userID, Balance: decimal.RequireFromString(balance)}
	if err := e.conn.Create(&profile).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func (e *testEnv) orgAccount(t *testing.T) models.OrganizationAccount {
	t.Helper()
	account, err := e.org.Account(context.Background())
	if err != nil {
		t.Fatalf("load org account: %v", err)
	}
	return *account
}

func eq(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", field, got, want)
	}
}

// Checkout of 2 x 1500.00 paid from balance:
// subtotal 3000, preVAT 4000, VAT 800, total 4800, tax reserve 624.
func TestCheckout_BalanceSettlement(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "5000.00")
	product := env.seedProduct(t, "1500.00", 10)

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 2}},
		Payment: payments.Request{Method: enums.PaymentMethodBalance},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("order status = %s", order.Status)
	}
	eq(t, "subtotal", order.Subtotal, "3000.00")
	eq(t, "vat", order.VATAmount, "800.00")
	eq(t, "tax", order.TaxAmount, "624.00")
	eq(t, "total", order.Total, "4800.00")

	profile, _ := env.wallets.Profile(ctx, userID)
	eq(t, "wallet", profile.Balance, "200.00")

	account := env.orgAccount(t)
	eq(t, "org balance", account.Balance, "4800.00")
	eq(t, "org reserve", account.TaxReserve, "624.00")

	var gotProduct models.Product
	if err := env.conn.First(&gotProduct, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if gotProduct.StockQuantity != 8 {
		t.Fatalf("stock = %d, want 8", gotProduct.StockQuantity)
	}

	receipt, err := env.svc.Receipt(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("Receipt error: %v", err)
	}
	if receipt.Status != enums.ReceiptStatusExecuted || len(receipt.Lines) != 2 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	payment, _ := env.svc.Get(ctx, userID, order.ID)
	if payment.Payment == nil || payment.Payment.Status != enums.PaymentStatusPaid || !payment.Payment.PaidFromBalance {
		t.Fatalf("unexpected payment: %+v", payment.Payment)
	}
}

func TestCheckout_CashStaysPending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	product := env.seedProduct(t, "800.00", 3)

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		Payment: payments.Request{Method: enums.PaymentMethodCash},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if order.Status != enums.OrderStatusProcessing {
		t.Fatalf("order status = %s", order.Status)
	}
	if order.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s", order.Payment.Status)
	}

	account := env.orgAccount(t)
	eq(t, "org balance", account.Balance, "0")

	var gotProduct models.Product
	env.conn.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.StockQuantity != 2 {
		t.Fatalf("stock = %d, want 2", gotProduct.StockQuantity)
	}
}

func TestCheckout_InsufficientBalanceRollsBackEverything(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "100.00")
	product := env.seedProduct(t, "1500.00", 10)

	_, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		Payment: payments.Request{Method: enums.PaymentMethodBalance},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	var orderCount, receiptCount, txnCount int64
	env.conn.Model(&models.Order{}).Count(&orderCount)
	env.conn.Model(&models.Receipt{}).Count(&receiptCount)
	env.conn.Model(&models.BalanceTransaction{}).Count(&txnCount)
	if orderCount != 0 || receiptCount != 0 || txnCount != 0 {
		t.Fatalf("rollback leaked rows: orders=%d receipts=%d txns=%d", orderCount, receiptCount, txnCount)
	}

	var gotProduct models.Product
	env.conn.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.StockQuantity != 10 {
		t.Fatalf("stock mutated on rollback: %d", gotProduct.StockQuantity)
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "100000.00")
	product := env.seedProduct(t, "10.00", 1)

	_, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 2}},
		Payment: payments.Request{Method: enums.PaymentMethodBalance},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	profile, _ := env.wallets.Profile(ctx, userID)
	eq(t, "wallet untouched", profile.Balance, "100000.00")
}

func TestCheckout_PromoApplied(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "10000.00")
	product := env.seedProduct(t, "2000.00", 5)
	promo := models.Promotion{
		ID:          uuid.New(),
		Code:        "TEN",
		DiscountPct: decimal.NewFromInt(10),
		IsActive:    true,
	}
	if err := env.conn.Create(&promo).Error; err != nil {
		t.Fatalf("seed promo: %v", err)
	}

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:    userID,
		Lines:     []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		PromoCode: "ten",
		Payment:   payments.Request{Method: enums.PaymentMethodBalance},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	eq(t, "discount", order.Discount, "200.00")
	// preVAT 2800, VAT 560, total 3360
	eq(t, "total", order.Total, "3360.00")
	if order.PromoCode == nil || *order.PromoCode != "TEN" {
		t.Fatalf("promo not captured: %v", order.PromoCode)
	}
}

// Cancel must return every counter to its pre-checkout value.
func TestCancel_ExactMirror(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "5000.00")
	product := env.seedProduct(t, "1500.00", 10)

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 2}},
		Payment: payments.Request{Method: enums.PaymentMethodBalance},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	cancelled, err := env.svc.Cancel(ctx, order.ID, Actor{ID: &userID, Role: "customer"})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled || cancelled.CanBeCancelled {
		t.Fatalf("unexpected cancelled order: %+v", cancelled)
	}

	profile, _ := env.wallets.Profile(ctx, userID)
	eq(t, "wallet restored", profile.Balance, "5000.00")

	account := env.orgAccount(t)
	eq(t, "org balance restored", account.Balance, "0")
	eq(t, "org reserve restored", account.TaxReserve, "0")

	var gotProduct models.Product
	env.conn.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.StockQuantity != 10 || !gotProduct.IsAvailable {
		t.Fatalf("stock not restored: %+v", gotProduct)
	}

	receipt, _ := env.svc.Receipt(ctx, userID, order.ID)
	if receipt.Status != enums.ReceiptStatusAnnulled {
		t.Fatalf("receipt status = %s", receipt.Status)
	}

	got, _ := env.svc.Get(ctx, userID, order.ID)
	if got.Payment.Status != enums.PaymentStatusRefunded {
		t.Fatalf("payment status = %s", got.Payment.Status)
	}
}

// A cash order credited to the org ledger via MarkPaid must release
// that credit on cancellation. The customer-side cash refund happens
// outside the system, so the wallet stays untouched.
func TestCancel_MarkedPaidCashReleasesOrgCredit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "100.00")
	product := env.seedProduct(t, "500.00", 5)
	adminID := uuid.New()
	admin := Actor{ID: &adminID, Role: "admin"}

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		Payment: payments.Request{Method: enums.PaymentMethodCash},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}
	if _, err := env.svc.MarkPaid(ctx, order.ID, admin); err != nil {
		t.Fatalf("MarkPaid error: %v", err)
	}

	account := env.orgAccount(t)
	eq(t, "org balance", account.Balance, "1800.00")
	eq(t, "org reserve", account.TaxReserve, "234.00")

	if _, err := env.svc.Cancel(ctx, order.ID, admin); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	account = env.orgAccount(t)
	eq(t, "org balance released", account.Balance, "0")
	eq(t, "org reserve released", account.TaxReserve, "0")

	profile, _ := env.wallets.Profile(ctx, userID)
	eq(t, "wallet untouched", profile.Balance, "100.00")

	var gotProduct models.Product
	env.conn.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.StockQuantity != 5 {
		t.Fatalf("stock not restored: %d", gotProduct.StockQuantity)
	}
}

func TestCancel_SecondCancelFailsFast(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "5000.00")
	product := env.seedProduct(t, "100.00", 5)

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		Payment: payments.Request{Method: enums.PaymentMethodBalance},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if _, err := env.svc.Cancel(ctx, order.ID, Actor{ID: &userID}); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	profileAfter, _ := env.wallets.Profile(ctx, userID)

	_, err = env.svc.Cancel(ctx, order.ID, Actor{ID: &userID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}

	profileAgain, _ := env.wallets.Profile(ctx, userID)
	if !profileAgain.Balance.Equal(profileAfter.Balance) {
		t.Fatal("second cancel mutated the wallet")
	}
}

func TestCancel_FailsWhenOrgCannotRefund(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "5000.00")
	product := env.seedProduct(t, "1000.00", 5)

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		Payment: payments.Request{Method: enums.PaymentMethodBalance},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	// drain the org balance so the refund cannot be covered
	adminCard := models.SavedCard{
		ID: uuid.New(), UserID: uuid.New(), Last4: "9999", Holder: "OPS",
		ExpiryMonth: 1, ExpiryYear: 2031, Brand: enums.CardBrandVisa,
		Balance: decimal.Zero,
	}
	if err := env.conn.Create(&adminCard).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}
	account := env.orgAccount(t)
	if _, err := env.org.Withdraw(ctx, orgledger.WithdrawInput{
		Amount: account.Balance,
		CardID: adminCard.ID,
	}); err != nil {
		t.Fatalf("Withdraw error: %v", err)
	}

	_, err = env.svc.Cancel(ctx, order.ID, Actor{ID: &userID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	// nothing moved: order still paid, wallet still debited
	got, _ := env.svc.Get(ctx, userID, order.ID)
	if got.Status != enums.OrderStatusPaid {
		t.Fatalf("order status = %s", got.Status)
	}
	profile, _ := env.wallets.Profile(ctx, userID)
	eq(t, "wallet", profile.Balance, "2600.00")
}

func TestLifecycle_CashMarkPaidShipDeliver(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	product := env.seedProduct(t, "500.00", 5)
	adminID := uuid.New()
	admin := Actor{ID: &adminID, Role: "admin"}

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		Payment: payments.Request{Method: enums.PaymentMethodCash},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	paid, err := env.svc.MarkPaid(ctx, order.ID, admin)
	if err != nil {
		t.Fatalf("MarkPaid error: %v", err)
	}
	if paid.Status != enums.OrderStatusPaid {
		t.Fatalf("status = %s", paid.Status)
	}

	account := env.orgAccount(t)
	// total = 500 + 1000 delivery = 1500 preVAT, VAT 300, total 1800
	eq(t, "org balance", account.Balance, "1800.00")
	eq(t, "org reserve", account.TaxReserve, "234.00")

	shipped, err := env.svc.Ship(ctx, order.ID, ShipInput{Carrier: "dhl", TrackingNumber: "TRK1"}, admin)
	if err != nil {
		t.Fatalf("Ship error: %v", err)
	}
	if shipped.Status != enums.OrderStatusShipped {
		t.Fatalf("status = %s", shipped.Status)
	}

	// shipped orders can no longer be cancelled
	if _, err := env.svc.Cancel(ctx, order.ID, admin); err == nil {
		t.Fatal("expected cancel to fail after ship")
	}

	delivered, err := env.svc.MarkDelivered(ctx, order.ID, admin)
	if err != nil {
		t.Fatalf("MarkDelivered error: %v", err)
	}
	if delivered.Status != enums.OrderStatusDelivered {
		t.Fatalf("status = %s", delivered.Status)
	}

	var delivery models.Delivery
	if err := env.conn.First(&delivery, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load delivery: %v", err)
	}
	if delivery.ShippedAt == nil || delivery.DeliveredAt == nil {
		t.Fatalf("delivery timestamps missing: %+v", delivery)
	}
}

func TestCheckout_RejectsForeignAddress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "5000.00")
	product := env.seedProduct(t, "100.00", 5)

	address := models.UserAddress{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		City:       "Riga",
		Street:     "Main",
		House:      "1",
		PostalCode: "LV-1001",
	}
	if err := env.conn.Create(&address).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}

	_, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:    userID,
		AddressID: &address.ID,
		Lines:     []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		Payment:   payments.Request{Method: enums.PaymentMethodBalance},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_HidesForeignOrders(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedProfile(t, userID, "5000.00")
	product := env.seedProduct(t, "100.00", 5)

	order, err := env.svc.Checkout(ctx, CheckoutInput{
		UserID:  userID,
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
		Payment: payments.Request{Method: enums.PaymentMethodBalance},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	_, err = env.svc.Get(ctx, uuid.New(), order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}
