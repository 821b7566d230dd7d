package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/pkg/db"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
	pkgerrors "github.com/shoplyft/backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.UserProfile{},
		&models.SavedCard{},
		&models.BalanceTransaction{},
		&models.CardTransaction{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(db.FromGorm(conn), NewRepository(conn))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc, conn
}

func seedCard(t *testing.T, conn *gorm.DB, userID uuid.UUID, balance string) models.SavedCard {
	t.Helper()
	card := models.SavedCard{
		ID:          uuid.New(),
		UserID:      userID,
		Last4:       "4242",
		Holder:      "J DOE",
		ExpiryMonth: 12,
		ExpiryYear:  2030,
		Brand:       enums.CardBrandVisa,
		Balance:     decimal.RequireFromString(balance),
	}
	if err := conn.Create(&card).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return card
}

func seedProfile(t *testing.T, conn *gorm.DB, userID uuid.UUID, balance string) {
	t.Helper()
	profile := models.UserProfile{UserID: userID, Balance: decimal.RequireFromString(balance)}
	if err := conn.Create(&profile).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func TestDeposit_MovesFundsAndWritesLedgers(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	seedProfile(t, conn, userID, "100.00")
	card := seedCard(t, conn, userID, "500.00")

	err := svc.Deposit(ctx, userID, card.ID, decimal.RequireFromString("150.00"))
	if err != nil {
		t.Fatalf("Deposit error: %v", err)
	}

	profile, err := svc.Profile(ctx, userID)
	if err != nil {
		t.Fatalf("Profile error: %v", err)
	}
	if !profile.Balance.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("balance = %s, want 250.00", profile.Balance)
	}

	var gotCard models.SavedCard
	if err := conn.First(&gotCard, "id = ?", card.ID).Error; err != nil {
		t.Fatalf("load card: %v", err)
	}
	if !gotCard.Balance.Equal(decimal.RequireFromString("350.00")) {
		t.Fatalf("card balance = %s, want 350.00", gotCard.Balance)
	}

	balanceTxns, _ := svc.BalanceTransactions(ctx, userID, 10)
	if len(balanceTxns) != 1 || balanceTxns[0].Type != enums.BalanceTxDeposit {
		t.Fatalf("unexpected balance ledger: %+v", balanceTxns)
	}
	if !balanceTxns[0].BalanceBefore.Equal(decimal.RequireFromString("100.00")) ||
		!balanceTxns[0].BalanceAfter.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("snapshots wrong: %+v", balanceTxns[0])
	}

	cardTxns, err := svc.CardTransactions(ctx, userID, card.ID, 10)
	if err != nil {
		t.Fatalf("CardTransactions error: %v", err)
	}
	if len(cardTxns) != 1 || cardTxns[0].Type != enums.CardTxWithdrawal {
		t.Fatalf("unexpected card ledger: %+v", cardTxns)
	}
}

func TestDeposit_InsufficientCardFundsRollsBack(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	seedProfile(t, conn, userID, "100.00")
	card := seedCard(t, conn, userID, "20.00")

	err := svc.Deposit(ctx, userID, card.ID, decimal.RequireFromString("50.00"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	profile, _ := svc.Profile(ctx, userID)
	if !profile.Balance.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("wallet mutated on failed deposit: %s", profile.Balance)
	}
	var count int64
	conn.Model(&models.BalanceTransaction{}).Count(&count)
	if count != 0 {
		t.Fatalf("ledger written on failed deposit: %d rows", count)
	}
}

func TestWithdraw_InsufficientWalletFunds(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	seedProfile(t, conn, userID, "30.00")
	card := seedCard(t, conn, userID, "0.00")

	err := svc.Withdraw(ctx, userID, card.ID, decimal.RequireFromString("31.00"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWithdraw_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	seedProfile(t, conn, userID, "200.00")
	card := seedCard(t, conn, userID, "0.00")
	amount := decimal.RequireFromString("75.50")

	if err := svc.Withdraw(ctx, userID, card.ID, amount); err != nil {
		t.Fatalf("Withdraw error: %v", err)
	}
	if err := svc.Deposit(ctx, userID, card.ID, amount); err != nil {
		t.Fatalf("Deposit error: %v", err)
	}

	profile, _ := svc.Profile(ctx, userID)
	if !profile.Balance.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("round trip drifted: %s", profile.Balance)
	}
}

func TestAddCard_MasksBrandsAndDefaults(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.AddCard(ctx, nil, AddCardInput{
		UserID:      userID,
		Number:      "4111111111111111",
		Holder:      "J DOE",
		ExpiryMonth: 11,
		ExpiryYear:  2031,
	})
	if err != nil {
		t.Fatalf("AddCard error: %v", err)
	}
	if first.Last4 != "1111" || first.Brand != enums.CardBrandVisa || !first.IsDefault {
		t.Fatalf("unexpected first card: %+v", first)
	}

	second, err := svc.AddCard(ctx, nil, AddCardInput{
		UserID:      userID,
		Number:      "5500005555555559",
		Holder:      "J DOE",
		ExpiryMonth: 1,
		ExpiryYear:  2032,
	})
	if err != nil {
		t.Fatalf("AddCard error: %v", err)
	}
	if second.Brand != enums.CardBrandMastercard || second.IsDefault {
		t.Fatalf("unexpected second card: %+v", second)
	}

	third, err := svc.AddCard(ctx, nil, AddCardInput{
		UserID:      userID,
		Number:      "6011000990139424",
		Holder:      "J DOE",
		ExpiryMonth: 6,
		ExpiryYear:  2033,
	})
	if err != nil {
		t.Fatalf("AddCard error: %v", err)
	}
	if third.Brand != enums.CardBrandGeneric {
		t.Fatalf("unexpected third card brand: %s", third.Brand)
	}
}

func TestSetDefaultCard_ClearsOthers(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	a := seedCard(t, conn, userID, "0.00")
	if err := conn.Model(&models.SavedCard{}).Where("id = ?", a.ID).Update("is_default", true).Error; err != nil {
		t.Fatalf("mark default: %v", err)
	}
	b := seedCard(t, conn, userID, "0.00")

	if err := svc.SetDefaultCard(ctx, userID, b.ID); err != nil {
		t.Fatalf("SetDefaultCard error: %v", err)
	}

	cards, _ := svc.Cards(ctx, userID)
	for _, c := range cards {
		if c.ID == b.ID && !c.IsDefault {
			t.Fatal("new default not set")
		}
		if c.ID == a.ID && c.IsDefault {
			t.Fatal("old default not cleared")
		}
	}
}

func TestDeleteCard_RefusesFundedCard(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	card := seedCard(t, conn, userID, "10.00")

	err := svc.DeleteCard(ctx, userID, card.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCardTransactions_ForeignCardHidden(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	card := seedCard(t, conn, uuid.New(), "0.00")

	_, err := svc.CardTransactions(ctx, uuid.New(), card.ID, 10)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}
