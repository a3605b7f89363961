package checkout

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/preorder-api/internal/common"
	"github.com/noah-isme/preorder-api/internal/pricing"
)

// OrderRequest is a validated pre-order.
type OrderRequest struct {
	Quantity int64           `validate:"min=1"`
	Donation decimal.Decimal `validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Decimals are validated by their float reading.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// number is the result of coercing a loosely typed JSON value. nan marks a
// value with no numeric reading; inf marks an infinite one.
type number struct {
	value decimal.Decimal
	nan   bool
	inf   bool
}

func (n number) finite() bool { return !n.nan && !n.inf }

var notANumber = number{nan: true}

// ParseOrderRequest decodes a checkout body. quantity and donation may be
// numbers, numeric strings, booleans or null; they are read the way a
// browser form would hand them over. quantity must be a whole number >= 1.
// A donation that is missing, non-numeric, negative or too large to charge
// becomes 0.
func ParseOrderRequest(body []byte) (OrderRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		// Anything that is not a JSON object carries no quantity.
		return OrderRequest{}, common.InvalidQuantity()
	}

	qty, ok := fields["quantity"]
	if !ok {
		return OrderRequest{}, common.InvalidQuantity()
	}
	quantity := coerce(qty)
	if !quantity.finite() {
		return OrderRequest{}, common.InvalidQuantity()
	}
	whole, ok := wholeNumber(quantity.value)
	if !ok || whole.LessThan(decimal.NewFromInt(1)) || whole.GreaterThan(decimal.NewFromInt(pricing.MaxQuantity)) {
		return OrderRequest{}, common.InvalidQuantity()
	}

	qtyInt := whole.IntPart()
	donation := decimal.Zero
	if raw, ok := fields["donation"]; ok {
		if d := coerce(raw); d.finite() && d.value.Sign() > 0 && pricing.DonationFits(qtyInt, d.value) {
			donation = d.value
		}
	}

	req := OrderRequest{Quantity: qtyInt, Donation: donation}
	if err := validate.Struct(req); err != nil {
		return OrderRequest{}, common.InvalidQuantity()
	}
	return req, nil
}

// wholeNumber reports the integer d denotes once read as a float64, so
// "1.0000000000000001" is 1 while 1.5 is not whole.
func wholeNumber(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsInteger() {
		return d, true
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(f), true
}

func coerce(raw json.RawMessage) number {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return notANumber
	}
	switch raw[0] {
	case 'n':
		return number{value: decimal.Zero}
	case 't':
		return number{value: decimal.NewFromInt(1)}
	case 'f':
		return number{value: decimal.Zero}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return notANumber
		}
		return coerceString(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return notANumber
		}
		switch len(items) {
		case 0:
			return number{value: decimal.Zero}
		case 1:
			inner := bytes.TrimSpace(items[0])
			if len(inner) > 0 && (inner[0] == '"' || inner[0] == '-' || (inner[0] >= '0' && inner[0] <= '9')) {
				return coerce(inner)
			}
		}
		return notANumber
	case '{':
		return notANumber
	default:
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return notANumber
		}
		return number{value: d}
	}
}

func coerceString(s string) number {
	s = strings.TrimSpace(s)
	if s == "" {
		return number{value: decimal.Zero}
	}
	switch s {
	case "Infinity", "+Infinity", "-Infinity":
		return number{inf: true}
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			v, err := strconv.ParseUint(s[2:], base, 63)
			if err != nil {
				return notANumber
			}
			return number{value: decimal.NewFromInt(int64(v))}
		}
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return notANumber
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return notANumber
	}
	return number{value: d}
}
