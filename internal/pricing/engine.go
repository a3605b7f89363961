package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

const (
	// UnitPrice is the price of one book in minor units.
	UnitPrice Money = 2000
	// Currency is the ISO currency code every session is priced in.
	Currency = "usd"
	// DefaultTitle names the book on the checkout page.
	DefaultTitle = "Piggy & Kay: The Sparkle Within"
	// MaxQuantity keeps quantity × UnitPrice inside int64.
	MaxQuantity = math.MaxInt64 / UnitPrice

	tipName        = "Support Our Mission (Tip)"
	tipDescription = "Help us create free resources for teachers"
)

// Tier grants a discount, in basis points, from MinQty copies upward.
type Tier struct {
	MinQty  int64
	RateBps int64
}

// Tiers are evaluated top-down; the first match wins.
var Tiers = []Tier{
	{MinQty: 5, RateBps: 1500},
	{MinQty: 3, RateBps: 1000},
}

// DiscountBps returns the discount for quantity in basis points.
func DiscountBps(quantity int64) int64 {
	for _, t := range Tiers {
		if quantity >= t.MinQty {
			return t.RateBps
		}
	}
	return 0
}

// DiscountRate returns the discount for quantity as a fraction (0, 0.10 or 0.15).
func DiscountRate(quantity int64) float64 {
	return float64(DiscountBps(quantity)) / 10000
}

// PricedOrder is the outcome of pricing one order request.
type PricedOrder struct {
	Quantity           int64
	UnitPrice          Money
	Subtotal           Money
	DiscountBps        int64
	DiscountAmount     Money
	BookPriceTotal     Money
	DonationMinorUnits Money
}

// Price computes subtotal, tiered discount, book total and donation for a
// validated quantity (>= 1) and a donation already clamped to >= 0. A
// donation whose minor units would push Total past int64 counts as no
// donation.
func Price(quantity int64, donation decimal.Decimal) PricedOrder {
	subtotal := quantity * UnitPrice
	bps := DiscountBps(quantity)
	discount := roundHalfUpBps(subtotal, bps)
	bookTotal := subtotal - discount
	return PricedOrder{
		Quantity:           quantity,
		UnitPrice:          UnitPrice,
		Subtotal:           subtotal,
		DiscountBps:        bps,
		DiscountAmount:     discount,
		BookPriceTotal:     bookTotal,
		DonationMinorUnits: donationMinor(donation, math.MaxInt64-bookTotal),
	}
}

// DonationMinorUnits converts a donation in major units to minor units,
// rounding half-up on the decimal value. Negative donations and donations
// beyond int64 yield 0.
func DonationMinorUnits(donation decimal.Decimal) Money {
	return donationMinor(donation, math.MaxInt64)
}

// DonationFits reports whether donation can be charged next to quantity
// books without the order total leaving int64.
func DonationFits(quantity int64, donation decimal.Decimal) bool {
	if donation.Sign() <= 0 {
		return true
	}
	return !minorUnits(donation).GreaterThan(decimal.NewFromInt(math.MaxInt64 - Price(quantity, decimal.Zero).BookPriceTotal))
}

func donationMinor(donation decimal.Decimal, limit Money) Money {
	if donation.Sign() <= 0 {
		return 0
	}
	minor := minorUnits(donation)
	if minor.GreaterThan(decimal.NewFromInt(limit)) {
		return 0
	}
	return minor.IntPart()
}

func minorUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(2).Round(0)
}

// roundHalfUpBps returns round(amount × bps / 10000) for non-negative inputs.
func roundHalfUpBps(amount Money, bps int64) Money {
	if bps == 0 || amount == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(decimal.NewFromInt(bps)).Shift(-4).Round(0).IntPart()
}

// Total is the amount charged: the book bundle plus any tip.
func (p PricedOrder) Total() Money {
	return p.BookPriceTotal + p.DonationMinorUnits
}

// DiscountPercent renders the discount as a whole percentage, e.g. "15%".
func (p PricedOrder) DiscountPercent() string {
	return fmt.Sprintf("%d%%", p.DiscountBps/100)
}

// LineItem is one priced component submitted to the checkout gateway.
type LineItem struct {
	Name        string
	Description string
	Images      []string
	UnitAmount  Money
	Quantity    int64
}

// LineItems returns the book bundle item and, when a donation was given, a
// tip item. The bundle carries quantity 1 because the discount is already
// applied to its unit amount.
func (p PricedOrder) LineItems(title string, images ...string) []LineItem {
	if title == "" {
		title = DefaultTitle
	}
	copies := "copies"
	books := "books"
	if p.Quantity == 1 {
		copies = "copy"
		books = "book"
	}
	description := fmt.Sprintf("Pre-order %d %s", p.Quantity, books)
	if p.DiscountAmount > 0 {
		description += fmt.Sprintf(" - %s discount applied", p.DiscountPercent())
	}
	items := []LineItem{{
		Name:        fmt.Sprintf("%s (%d %s)", title, p.Quantity, copies),
		Description: description,
		Images:      images,
		UnitAmount:  p.BookPriceTotal,
		Quantity:    1,
	}}
	if p.DonationMinorUnits > 0 {
		items = append(items, LineItem{
			Name:        tipName,
			Description: tipDescription,
			UnitAmount:  p.DonationMinorUnits,
			Quantity:    1,
		})
	}
	return items
}
