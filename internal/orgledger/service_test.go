package orgledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/internal/wallet"
	"github.com/shoplyft/backend/pkg/db"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
	pkgerrors "github.com/shoplyft/backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:orgledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.UserProfile{},
		&models.SavedCard{},
		&models.BalanceTransaction{},
		&models.CardTransaction{},
		&models.OrganizationAccount{},
		&models.OrganizationTransaction{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.FromGorm(conn)
	wallets, err := wallet.NewService(client, wallet.NewRepository(conn))
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	svc, err := NewService(client, NewRepository(conn), wallets)
	if err != nil {
		t.Fatalf("org ledger service: %v", err)
	}
	return svc, conn
}

func seedCard(t *testing.T, conn *gorm.DB, balance string) models.SavedCard {
	t.Helper()
	card := models.SavedCard{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Last4:       "4242",
		Holder:      "OPS TEAM",
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

func credit(t *testing.T, svc Service, client *db.Client, amount, tax string) {
	t.Helper()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.Credit(context.Background(), tx, CreditInput{
			Amount:    decimal.RequireFromString(amount),
			TaxAmount: decimal.RequireFromString(tax),
		})
		return err
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func TestCredit_RecordsSnapshots(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	client := db.FromGorm(conn)
	ctx := context.Background()

	credit(t, svc, client, "4800.00", "624.00")

	var txn *models.OrganizationTransaction
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = svc.Credit(ctx, tx, CreditInput{
			Amount:    decimal.RequireFromString("1200.00"),
			TaxAmount: decimal.RequireFromString("156.00"),
		})
		return err
	})
	if err != nil {
		t.Fatalf("Credit error: %v", err)
	}

	if txn.Type != enums.OrgTxOrderPayment {
		t.Fatalf("type = %s", txn.Type)
	}
	if txn.Type.String() != "order_payment" {
		t.Fatalf("ledger entry type = %q, want order_payment", txn.Type)
	}
	if !txn.BalanceBefore.Equal(decimal.RequireFromString("4800.00")) ||
		!txn.BalanceAfter.Equal(decimal.RequireFromString("6000.00")) {
		t.Fatalf("balance snapshots: %s -> %s", txn.BalanceBefore, txn.BalanceAfter)
	}
	if !txn.ReserveBefore.Equal(decimal.RequireFromString("624.00")) ||
		!txn.ReserveAfter.Equal(decimal.RequireFromString("780.00")) {
		t.Fatalf("reserve snapshots: %s -> %s", txn.ReserveBefore, txn.ReserveAfter)
	}

	account, err := svc.Account(ctx)
	if err != nil {
		t.Fatalf("Account error: %v", err)
	}
	if !account.Balance.Equal(decimal.RequireFromString("6000.00")) {
		t.Fatalf("balance = %s", account.Balance)
	}
}

func TestDebit_RequiresCoveringBalance(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	client := db.FromGorm(conn)
	ctx := context.Background()

	credit(t, svc, client, "100.00", "13.00")

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.Debit(ctx, tx, DebitInput{
			Amount:    decimal.RequireFromString("150.00"),
			TaxAmount: decimal.RequireFromString("13.00"),
		})
		return err
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	account, _ := svc.Account(ctx)
	if !account.Balance.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("balance mutated: %s", account.Balance)
	}
}

// Tax already paid out can leave the reserve short of the refund's tax
// share. The release is clamped, never negative.
func TestDebit_ClampsReserveAtZero(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	client := db.FromGorm(conn)
	ctx := context.Background()

	credit(t, svc, client, "1000.00", "50.00")
	if _, err := svc.PayTax(ctx, PayTaxInput{Amount: decimal.RequireFromString("40.00")}); err != nil {
		t.Fatalf("PayTax error: %v", err)
	}

	var txn *models.OrganizationTransaction
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = svc.Debit(ctx, tx, DebitInput{
			Amount:    decimal.RequireFromString("500.00"),
			TaxAmount: decimal.RequireFromString("50.00"),
		})
		return err
	})
	if err != nil {
		t.Fatalf("Debit error: %v", err)
	}

	if !txn.ReserveAfter.IsZero() {
		t.Fatalf("reserve after = %s, want 0", txn.ReserveAfter)
	}
	if !txn.TaxAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("released = %s, want clamped 10.00", txn.TaxAmount)
	}
	if !txn.BalanceAfter.Equal(decimal.RequireFromString("460.00")) {
		t.Fatalf("balance after = %s", txn.BalanceAfter)
	}
}

func TestWithdraw_PairsCardDeposit(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	client := db.FromGorm(conn)
	ctx := context.Background()

	credit(t, svc, client, "2000.00", "260.00")
	card := seedCard(t, conn, "100.00")

	txn, err := svc.Withdraw(ctx, WithdrawInput{
		Amount: decimal.RequireFromString("500.00"),
		CardID: card.ID,
	})
	if err != nil {
		t.Fatalf("Withdraw error: %v", err)
	}
	if txn.Type != enums.OrgTxWithdrawal {
		t.Fatalf("type = %s", txn.Type)
	}
	if !txn.BalanceAfter.Equal(decimal.RequireFromString("1500.00")) {
		t.Fatalf("balance after = %s", txn.BalanceAfter)
	}
	// the reserve is untouched by withdrawals
	if !txn.ReserveAfter.Equal(decimal.RequireFromString("260.00")) {
		t.Fatalf("reserve after = %s", txn.ReserveAfter)
	}

	var gotCard models.SavedCard
	if err := conn.First(&gotCard, "id = ?", card.ID).Error; err != nil {
		t.Fatalf("load card: %v", err)
	}
	if !gotCard.Balance.Equal(decimal.RequireFromString("600.00")) {
		t.Fatalf("card balance = %s", gotCard.Balance)
	}

	var deposits int64
	conn.Model(&models.CardTransaction{}).
		Where("card_id = ? AND type = ?", card.ID, enums.CardTxDeposit).
		Count(&deposits)
	if deposits != 1 {
		t.Fatalf("card deposit rows = %d", deposits)
	}
}

// The target card is checked and locked before the org account is
// touched, so a bad card id fails without writing any ledger rows.
func TestWithdraw_MissingCardFailsBeforeLedger(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	client := db.FromGorm(conn)
	ctx := context.Background()

	credit(t, svc, client, "2000.00", "260.00")

	_, err := svc.Withdraw(ctx, WithdrawInput{
		Amount: decimal.RequireFromString("500.00"),
		CardID: uuid.New(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}

	account, _ := svc.Account(ctx)
	if !account.Balance.Equal(decimal.RequireFromString("2000.00")) {
		t.Fatalf("balance mutated: %s", account.Balance)
	}
	var txns int64
	conn.Model(&models.OrganizationTransaction{}).
		Where("type = ?", enums.OrgTxWithdrawal).
		Count(&txns)
	if txns != 0 {
		t.Fatalf("withdrawal rows = %d", txns)
	}
}

func TestWithdraw_InsufficientBalanceRollsBack(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	client := db.FromGorm(conn)
	ctx := context.Background()

	credit(t, svc, client, "100.00", "13.00")
	card := seedCard(t, conn, "0")

	_, err := svc.Withdraw(ctx, WithdrawInput{
		Amount: decimal.RequireFromString("500.00"),
		CardID: card.ID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotCard models.SavedCard
	conn.First(&gotCard, "id = ?", card.ID)
	if !gotCard.Balance.IsZero() {
		t.Fatalf("card credited on failed withdrawal: %s", gotCard.Balance)
	}
	var txns int64
	conn.Model(&models.OrganizationTransaction{}).
		Where("type = ?", enums.OrgTxWithdrawal).
		Count(&txns)
	if txns != 0 {
		t.Fatalf("withdrawal rows = %d", txns)
	}
}

func TestPayTax_RequiresBalanceAndReserve(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	client := db.FromGorm(conn)
	ctx := context.Background()

	credit(t, svc, client, "1000.00", "130.00")

	// covered by the balance but not the reserve
	_, err := svc.PayTax(ctx, PayTaxInput{Amount: decimal.RequireFromString("200.00")})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	txn, err := svc.PayTax(ctx, PayTaxInput{Amount: decimal.RequireFromString("130.00")})
	if err != nil {
		t.Fatalf("PayTax error: %v", err)
	}
	if txn.Type != enums.OrgTxTaxPayment {
		t.Fatalf("type = %s", txn.Type)
	}
	if !txn.BalanceAfter.Equal(decimal.RequireFromString("870.00")) || !txn.ReserveAfter.IsZero() {
		t.Fatalf("after payment: balance %s reserve %s", txn.BalanceAfter, txn.ReserveAfter)
	}
}

func TestTransactions_ListsLedger(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	client := db.FromGorm(conn)
	ctx := context.Background()

	credit(t, svc, client, "500.00", "65.00")
	credit(t, svc, client, "300.00", "39.00")

	txns, err := svc.Transactions(ctx, 10)
	if err != nil {
		t.Fatalf("Transactions error: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("txns = %d, want 2", len(txns))
	}
}
