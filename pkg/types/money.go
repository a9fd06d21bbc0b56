package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// MoneyScale 金额以微美元（1e-6 USD）整数入库，聚合时不存在浮点误差
const MoneyScale = 6

// Money 美元金额，定点小数
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(MoneyScale)}
}

func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

func MustParseMoney(s string) Money {
	return NewMoney(decimal.RequireFromString(s))
}

func MoneyFromMicros(micros int64) Money {
	return Money{Decimal: decimal.New(micros, -MoneyScale)}
}

func (m Money) Micros() int64 {
	return m.Decimal.Shift(MoneyScale).Round(0).IntPart()
}

func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

// GTE current >= limit
func (m Money) GTE(o Money) bool {
	return m.Decimal.GreaterThanOrEqual(o.Decimal)
}

// USD 两位小数展示
func (m Money) USD() string {
	return "$" + m.Decimal.StringFixed(2)
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.Micros(), nil
}

// Scan implements the sql.Scanner interface.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*m = MoneyFromMicros(v)
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	case float64:
		*m = MoneyFromMicros(int64(v))
	case nil:
		*m = Money{}
	default:
		return fmt.Errorf("types: cannot convert %T to Money", src)
	}
	return nil
}

func (m *Money) scanString(s string) error {
	micros, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		*m = MoneyFromMicros(micros)
		return nil
	}
	// SUM() 在部分驱动下返回 numeric 字符串
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("types: cannot parse money %q, %w", s, err)
	}
	*m = MoneyFromMicros(d.Round(0).IntPart())
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.InexactFloat64())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = NewMoney(d)
	return nil
}

// NullMoney 可空金额，用于可选的额度上限
type NullMoney struct {
	Money Money
	Valid bool
}

func (n NullMoney) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Money.Value()
}

func (n *NullMoney) Scan(src interface{}) error {
	if src == nil {
		n.Money, n.Valid = Money{}, false
		return nil
	}
	n.Valid = true
	return n.Money.Scan(src)
}
