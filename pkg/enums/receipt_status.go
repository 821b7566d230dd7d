package enums

type ReceiptStatus string

const (
	ReceiptStatusExecuted ReceiptStatus = "executed"
	ReceiptStatusAnnulled ReceiptStatus = "annulled"
)

func (s ReceiptStatus) String() string {
	return string(s)
}

func (s ReceiptStatus) IsValid() bool {
	return s == ReceiptStatusExecuted || s == ReceiptStatusAnnulled
}
