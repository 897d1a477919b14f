package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "tutorly/pkg/domain-errors"
)

// Money is an amount in minor units (cents/halalas). Prices and transfer
// amounts are compared exactly, so floating point never enters the domain.
type Money int64

// maxWholeDigits keeps units*100+cents inside int64.
const maxWholeDigits = 16

// ParseMoney accepts "120", "120.5" and "120.50" with one optional leading
// "-". More than two fractional digits is an error rather than a silent rounding.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount is required")
	}
	neg := false
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		neg = true
		s = rest
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if !isDigits(whole) || (hasFrac && !isDigits(frac)) || len(frac) > 2 || len(whole) > maxWholeDigits {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount must be a number with at most two decimals")
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount must be a number with at most two decimals")
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount must be a number with at most two decimals")
	}
	m := Money(units*100 + cents)
	if neg {
		m = -m
	}
	return m, nil
}

// isDigits reports a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustMoney is for constants and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalText encodes money as a decimal string so JSON clients never see floats.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalText(b []byte) error {
	parsed, err := ParseMoney(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ProRate prices minutes of a lesson at an hourly rate, rounding half up to
// the nearest minor unit.
func (m Money) ProRate(minutes int) Money {
	return Money((int64(m)*int64(minutes) + 30) / 60)
}
