package enums

// BalanceTransactionType classifies wallet ledger entries.
type BalanceTransactionType string

const (
	BalanceTxOrderPayment BalanceTransactionType = "order_payment"
	BalanceTxOrderRefund  BalanceTransactionType = "order_refund"
	BalanceTxDeposit      BalanceTransactionType = "deposit"
	BalanceTxWithdrawal   BalanceTransactionType = "withdrawal"
)

func (t BalanceTransactionType) String() string {
	return string(t)
}

func (t BalanceTransactionType) IsValid() bool {
	switch t {
	case BalanceTxOrderPayment, BalanceTxOrderRefund, BalanceTxDeposit, BalanceTxWithdrawal:
		return true
	}
	return false
}

// CardTransactionType classifies saved-card ledger entries.
type CardTransactionType string

const (
	CardTxDeposit    CardTransactionType = "deposit"
	CardTxWithdrawal CardTransactionType = "withdrawal"
)

func (t CardTransactionType) String() string {
	return string(t)
}

func (t CardTransactionType) IsValid() bool {
	return t == CardTxDeposit || t == CardTxWithdrawal
}

// OrgTransactionType classifies organization account ledger entries.
type OrgTransactionType string

const (
	OrgTxOrderPayment OrgTransactionType = "order_payment"
	OrgTxOrderRefund  OrgTransactionType = "order_refund"
	OrgTxWithdrawal   OrgTransactionType = "withdrawal"
	OrgTxTaxPayment   OrgTransactionType = "tax_payment"
)

func (t OrgTransactionType) String() string {
	return string(t)
}

func (t OrgTransactionType) IsValid() bool {
	switch t {
	case OrgTxOrderPayment, OrgTxOrderRefund, OrgTxWithdrawal, OrgTxTaxPayment:
		return true
	}
	return false
}
