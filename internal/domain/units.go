package domain

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// maxAmountIntegerDigits keeps the integer part below 10^78, above any uint256.
	maxAmountIntegerDigits = 78
	maxAmountLength        = 256
)

var (
	// ErrInvalidAmount amount is not a positive number representable in raw units.
	ErrInvalidAmount = errors.New("invalid amount")

	// plain decimal notation, no sign and no exponent.
	amountPattern = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)
)

// FormatUnits converts a raw integer amount into a decimal string,
// dividing by 10^decimals and dropping trailing zeros.
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// ParseUnits converts a human amount into raw integer units.
// It fails unless the amount is a plain decimal (no sign, no exponent),
// strictly positive, with at most decimals fractional digits.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.Wrap(ErrInvalidAmount, "empty")
	}
	if len(amount) > maxAmountLength || !amountPattern.MatchString(amount) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is not a plain decimal number", amount)
	}
	whole, fraction, _ := strings.Cut(amount, ".")
	if len(strings.TrimLeft(whole, "0")) > maxAmountIntegerDigits {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is too large", amount)
	}
	if len(strings.TrimRight(fraction, "0")) > int(decimals) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q has more than %d decimals", amount, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	if fraction != "" {
		whole += "." + fraction
	}
	d, err := decimal.NewFromString(whole)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is not a number", amount)
	}
	if !d.IsPositive() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is not positive", amount)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q has more than %d decimals", amount, decimals)
	}
	return shifted.BigInt(), nil
}
