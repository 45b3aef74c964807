package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Money BRL amount kept at two decimal places
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal rounds to cents
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(2)}
}

// ParseMoney accepts a JSON number or numeric string and rounds to cents
func ParseMoney(raw interface{}) (Money, error) {
	d, err := ParseDecimal(raw)
	if err != nil {
		return Money{}, err
	}
	return NewMoneyFromDecimal(d), nil
}

// ParseDecimal is ParseMoney without rounding
func ParseDecimal(raw interface{}) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, errors.New("amount is empty")
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, errors.New("amount is not numeric")
	}
}

// MarshalJSON writes a fixed two decimal string
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.Round(2).StringFixed(2))
}

// UnmarshalJSON reads a string or number
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := ParseMoney(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	parsed, err := ParseMoney(json.Number(string(b)))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Float64 for provider payloads that expect a JSON number
func (m Money) Float64() float64 {
	f, _ := m.Decimal.Round(2).Float64()
	return f
}

func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(2).Value()
}

func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(2)
	return nil
}

// String fixed two decimal form
func (m Money) String() string {
	return m.Decimal.Round(2).StringFixed(2)
}
