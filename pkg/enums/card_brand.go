package enums

type CardBrand string

const (
	CardBrandVisa       CardBrand = "visa"
	CardBrandMastercard CardBrand = "mastercard"
	CardBrandGeneric    CardBrand = "card"
)

func (b CardBrand) String() string {
	return string(b)
}

func (b CardBrand) IsValid() bool {
	switch b {
	case CardBrandVisa, CardBrandMastercard, CardBrandGeneric:
		return true
	}
	return false
}

// BrandFromPAN infers the brand from the leading digit of the card
// number. Unrecognized prefixes fall back to the generic brand.
func BrandFromPAN(pan string) CardBrand {
	if pan == "" {
		return CardBrandGeneric
	}
	switch pan[0] {
	case '4':
		return CardBrandVisa
	case '5':
		return CardBrandMastercard
	default:
		return CardBrandGeneric
	}
}
