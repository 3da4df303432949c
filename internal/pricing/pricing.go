// Package pricing holds the money rules shared by the catalog, the cart
// and checkout. Amounts are stored as float64 but every sum or product is
// computed in decimal and rounded to two places.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type SaleUpdateInput struct {
	Price       *float64
	SaleEnabled *bool
	SalePrice   *float64
}

type SaleUpdateResult struct {
	Price       float64
	SaleEnabled bool
	SalePrice   float64
}

// ShippingPolicy charges Fee unless the subtotal reaches FreeThreshold.
// A zero FreeThreshold means shipping is always charged.
type ShippingPolicy struct {
	Fee           float64
	FreeThreshold float64
}

type Line struct {
	UnitPrice float64
	Quantity  int
}

type Quote struct {
	Subtotal    float64 `json:"subtotal"`
	ShippingFee float64 `json:"shippingFee"`
	Total       float64 `json:"total"`
}

func IsOnSale(price float64, saleEnabled bool, salePrice float64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

func EffectivePrice(price float64, saleEnabled bool, salePrice float64) float64 {
	if IsOnSale(price, saleEnabled, salePrice) {
		return salePrice
	}
	return price
}

func ValidateSaleFields(price float64, saleEnabled bool, salePrice float64, salePriceSet bool) error {
	if !saleEnabled {
		return nil
	}
	if !salePriceSet {
		return fmt.Errorf("salePrice is required when saleEnabled is true")
	}
	if salePrice <= 0 {
		return fmt.Errorf("salePrice must be greater than 0")
	}
	if salePrice >= price {
		return fmt.Errorf("salePrice must be less than price")
	}
	return nil
}

// ResolveSaleUpdate merges a partial update into the stored sale fields.
// Disabling the sale clears the sale price.
func ResolveSaleUpdate(existingPrice float64, existingSaleEnabled bool, existingSalePrice float64, input SaleUpdateInput) (SaleUpdateResult, error) {
	result := SaleUpdateResult{
		Price:       existingPrice,
		SaleEnabled: existingSaleEnabled,
		SalePrice:   existingSalePrice,
	}

	if input.Price != nil {
		if *input.Price <= 0 {
			return SaleUpdateResult{}, fmt.Errorf("price must be greater than 0")
		}
		result.Price = *input.Price
	}

	salePriceSet := existingSalePrice > 0

	if input.SaleEnabled != nil {
		result.SaleEnabled = *input.SaleEnabled
		if !*input.SaleEnabled {
			result.SalePrice = 0
			salePriceSet = false
		}
	}

	if input.SalePrice != nil {
		result.SalePrice = *input.SalePrice
		salePriceSet = true
	}

	if err := ValidateSaleFields(result.Price, result.SaleEnabled, result.SalePrice, salePriceSet); err != nil {
		return SaleUpdateResult{}, err
	}
	return result, nil
}

func LineTotal(unitPrice float64, quantity int) float64 {
	return decimal.NewFromFloat(unitPrice).
		Mul(decimal.NewFromInt(int64(quantity))).
		Round(2).
		InexactFloat64()
}

func (p ShippingPolicy) FeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() {
		return decimal.Zero
	}
	if p.FreeThreshold > 0 && subtotal.GreaterThanOrEqual(decimal.NewFromFloat(p.FreeThreshold)) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(p.Fee)
}

func QuoteLines(lines []Line, policy ShippingPolicy) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)
	fee := policy.FeeFor(subtotal).Round(2)

	return Quote{
		Subtotal:    subtotal.InexactFloat64(),
		ShippingFee: fee.InexactFloat64(),
		Total:       subtotal.Add(fee).InexactFloat64(),
	}
}

// ToMinorUnits converts an amount to the currency's smallest unit
// (paise for INR), rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(units int64) float64 {
	return decimal.NewFromInt(units).Div(hundred).InexactFloat64()
}
