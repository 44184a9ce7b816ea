package db

import (
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/russross/meddler"
)

func init() {
	// Register custom meddler converter for *big.Int balances
	meddler.Register("bigint", BigIntMeddler{})
}

// BigIntDigits is the width bigint columns are zero padded to. It fits a u128.
const BigIntDigits = 40

// FormatBigInt renders a non-negative value as a zero padded decimal of BigIntDigits digits,
// so that text comparison of stored values matches numeric comparison.
func FormatBigInt(value *big.Int) (string, error) {
	if value.Sign() < 0 {
		return "", fmt.Errorf("negative value %s cannot be stored in a bigint column", value)
	}
	s := value.String()
	if len(s) > BigIntDigits {
		return "", fmt.Errorf("value %s exceeds %d digits", s, BigIntDigits)
	}
	return strings.Repeat("0", BigIntDigits-len(s)) + s, nil
}

// BigIntMeddler stores *big.Int values as zero padded decimal strings.
// Chain balances exceed 64 bits, so they cannot be stored as integers.
type BigIntMeddler struct{}

func (b BigIntMeddler) PreRead(fieldAddr any) (scanTarget any, err error) {
	return new(sql.NullString), nil
}

func (b BigIntMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(**big.Int)
	if !ok {
		return fmt.Errorf("expected **big.Int, got %T", fieldAddr)
	}

	if !ns.Valid {
		*ptr = nil
		return nil
	}

	value, ok := new(big.Int).SetString(ns.String, 10) //nolint:mnd
	if !ok {
		return fmt.Errorf("invalid decimal value %q", ns.String)
	}
	*ptr = value
	return nil
}

func (b BigIntMeddler) PreWrite(field any) (saveValue any, err error) {
	value, ok := field.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", field)
	}
	if value == nil {
		return nil, nil
	}
	return FormatBigInt(value)
}
