/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SatsPerBitcoin is the number of satoshis in one whole bitcoin.
const SatsPerBitcoin = 100_000_000

// ErrInvalidPrice is returned when a conversion is attempted at a zero or
// negative price.
var ErrInvalidPrice = errors.New("price must be positive")

// Bitcoin is an exact satoshi count. All arithmetic on channel balances is
// integer arithmetic; floats never enter storage.
type Bitcoin int64

// BitcoinFromSats creates a Bitcoin amount from a satoshi count.
func BitcoinFromSats(sats int64) Bitcoin {
	return Bitcoin(sats)
}

// Sats returns the satoshi count.
func (b Bitcoin) Sats() int64 {
	return int64(b)
}

// MilliSats returns the amount in millisatoshis, the channel protocol's
// smallest payable unit.
func (b Bitcoin) MilliSats() int64 {
	return int64(b) * 1000
}

// Decimal returns the amount in whole bitcoin as an exact decimal.
func (b Bitcoin) Decimal() decimal.Decimal {
	return decimal.New(int64(b), -8)
}

// Add returns b + other.
func (b Bitcoin) Add(other Bitcoin) Bitcoin {
	return b + other
}

// Sub returns b - other.
func (b Bitcoin) Sub(other Bitcoin) Bitcoin {
	return b - other
}

func (b Bitcoin) String() string {
	return fmt.Sprintf("%s BTC", b.Decimal().StringFixed(8))
}

// USD is a fixed-point quote-currency value. It keeps full decimal precision
// internally; rounding happens once, at conversion boundaries, using
// round-half-even.
type USD struct {
	amount decimal.Decimal
}

// NewUSD wraps a decimal dollar amount.
func NewUSD(amount decimal.Decimal) USD {
	return USD{amount: amount}
}

// USDFromFloat converts a float dollar amount. Only intended for boundaries
// (configuration, display); peg arithmetic stays in decimal.
func USDFromFloat(amount float64) USD {
	return USD{amount: decimal.NewFromFloat(amount)}
}

// USDFromBitcoin converts a satoshi amount to dollars at the given price
// (dollars per whole bitcoin). The product is exact; no rounding occurs here.
func USDFromBitcoin(b Bitcoin, price decimal.Decimal) (USD, error) {
	if !price.IsPositive() {
		return USD{}, ErrInvalidPrice
	}
	return USD{amount: b.Decimal().Mul(price)}, nil
}

// ToSats converts the dollar amount back to satoshis at the given price,
// rounding half-even to the nearest satoshi.
func (u USD) ToSats(price decimal.Decimal) (Bitcoin, error) {
	if !price.IsPositive() {
		return 0, ErrInvalidPrice
	}
	sats := u.amount.Div(price).Mul(decimal.NewFromInt(SatsPerBitcoin)).RoundBank(0)
	return Bitcoin(sats.IntPart()), nil
}

// ToMilliSats converts the dollar amount to millisatoshis at the given price,
// rounding half-even to the nearest millisatoshi.
func (u USD) ToMilliSats(price decimal.Decimal) (int64, error) {
	if !price.IsPositive() {
		return 0, ErrInvalidPrice
	}
	msats := u.amount.Div(price).Mul(decimal.NewFromInt(SatsPerBitcoin * 1000)).RoundBank(0)
	return msats.IntPart(), nil
}

// Decimal returns the underlying decimal dollar amount.
func (u USD) Decimal() decimal.Decimal {
	return u.amount
}

// Add returns u + other.
func (u USD) Add(other USD) USD {
	return USD{amount: u.amount.Add(other.amount)}
}

// Sub returns u - other.
func (u USD) Sub(other USD) USD {
	return USD{amount: u.amount.Sub(other.amount)}
}

// Abs returns the absolute value.
func (u USD) Abs() USD {
	return USD{amount: u.amount.Abs()}
}

// LessThan reports whether u < other.
func (u USD) LessThan(other USD) bool {
	return u.amount.LessThan(other.amount)
}

// IsPositive reports whether u > 0.
func (u USD) IsPositive() bool {
	return u.amount.IsPositive()
}

// IsZero reports whether u == 0.
func (u USD) IsZero() bool {
	return u.amount.IsZero()
}

// PercentOf returns |u / base| × 100. base must be non-zero; callers enforce
// that at construction time of the peg record.
func (u USD) PercentOf(base USD) decimal.Decimal {
	return u.amount.Div(base.amount).Mul(decimal.NewFromInt(100)).Abs()
}

func (u USD) String() string {
	return fmt.Sprintf("$%s", u.amount.RoundBank(2).StringFixed(2))
}

// MarshalJSON renders the amount as a plain decimal number.
func (u USD) MarshalJSON() ([]byte, error) {
	return u.amount.MarshalJSON()
}

// UnmarshalJSON parses a decimal dollar amount.
func (u *USD) UnmarshalJSON(data []byte) error {
	return u.amount.UnmarshalJSON(data)
}
