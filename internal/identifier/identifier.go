// Package identifier mints the references payers quote when paying the
// static PIX key.
//
// Period-scoped identifiers are 17 digits:
//
//	YYYYMM | last four digits of the payer id | 6 random digits | Luhn check digit
//
// They group by period when sorted, fit the 25-character PIX txid field and
// let an operator catch a mistyped digit. Opaque identifiers are 8
// characters of z-base-32, meant to be read aloud.
package identifier

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/theplant/luhn"

	"github.com/iurnickita/pixrecon/internal/errs"
)

const (
	PeriodLayout  = "200601"
	periodLen     = 6
	payerLen      = 4
	randomLen     = 6
	periodIDLen   = periodLen + payerLen + randomLen + 1
	OpaqueLen     = 8
	zbase32       = "ybndrfg8ejkmcpqxot1uwisza345h769"
	randomModulus = 1000000
)

var (
	ErrInvalidPeriod = errs.Mark(errs.New("period must be YYYYMM"), errs.ErrValidation)
	ErrInvalidPayer  = errs.Mark(errs.New("payer id is required"), errs.ErrValidation)

	opaqueEncoding = base32.NewEncoding(zbase32).WithPadding(base32.NoPadding)
)

type Generator struct {
	random io.Reader
}

// NewGenerator draws randomness from random, crypto/rand when nil.
func NewGenerator(random io.Reader) *Generator {
	if random == nil {
		random = rand.Reader
	}
	return &Generator{random: random}
}

// Period formats t as a billing period tag.
func Period(t time.Time) string {
	return t.Format(PeriodLayout)
}

func ValidPeriod(period string) bool {
	if len(period) != periodLen {
		return false
	}
	_, err := time.Parse(PeriodLayout, period)
	return err == nil
}

// NewIdentifier returns a period-scoped identifier for the payer.
func (g *Generator) NewIdentifier(payerID, period string) (string, error) {
	if !ValidPeriod(period) {
		return "", errs.Wrapf(ErrInvalidPeriod, "got %q", period)
	}
	suffix := payerSuffix(payerID)
	if suffix == "" {
		return "", ErrInvalidPayer
	}

	n, err := rand.Int(g.random, big.NewInt(randomModulus))
	if err != nil {
		return "", errs.Wrap(err, "read random")
	}

	base := fmt.Sprintf("%s%s%06d", period, suffix, n.Int64())
	number, err := strconv.Atoi(base)
	if err != nil {
		return "", errs.Wrapf(err, "identifier base %s", base)
	}
	return base + strconv.Itoa(luhn.CalculateLuhn(number)), nil
}

// payerSuffix keeps the last four digits of the payer id, left padded with
// zeros. Payer ids without digits fall back to a digit hash of the id.
func payerSuffix(payerID string) string {
	payerID = strings.TrimSpace(payerID)
	if payerID == "" {
		return ""
	}
	var digits []byte
	for i := 0; i < len(payerID); i++ {
		if payerID[i] >= '0' && payerID[i] <= '9' {
			digits = append(digits, payerID[i])
		}
	}
	if len(digits) == 0 {
		var h uint32
		for i := 0; i < len(payerID); i++ {
			h = h*31 + uint32(payerID[i])
		}
		digits = []byte(strconv.FormatUint(uint64(h), 10))
	}
	if len(digits) > payerLen {
		digits = digits[len(digits)-payerLen:]
	}
	return strings.Repeat("0", payerLen-len(digits)) + string(digits)
}

// NewOpaqueIdentifier returns a short code with no structure.
func (g *Generator) NewOpaqueIdentifier() (string, error) {
	id, err := uuid.NewRandomFromReader(g.random)
	if err != nil {
		return "", errs.Wrap(err, "read random")
	}
	return opaqueEncoding.EncodeToString(id[:5])[:OpaqueLen], nil
}

// PeriodOf extracts the period tag of a period-scoped identifier.
func PeriodOf(identifier string) (string, bool) {
	if !IsPeriodScoped(identifier) {
		return "", false
	}
	return identifier[:periodLen], true
}

// IsPeriodScoped reports whether identifier has the period-scoped shape
// and a valid check digit.
func IsPeriodScoped(identifier string) bool {
	if len(identifier) != periodIDLen {
		return false
	}
	number, err := strconv.Atoi(identifier)
	if err != nil {
		return false
	}
	return ValidPeriod(identifier[:periodLen]) && luhn.Valid(number)
}

func IsOpaque(identifier string) bool {
	if len(identifier) != OpaqueLen {
		return false
	}
	for _, r := range identifier {
		if !strings.ContainsRune(zbase32, r) {
			return false
		}
	}
	return true
}

var ErrMistyped = errs.Mark(errs.New("identifier check digit mismatch"), errs.ErrValidation)

// Check rejects identifiers that look period-scoped but fail the check
// digit. Anything else non-empty is accepted; the ledger decides whether it
// exists.
func Check(identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return errs.Mark(errs.New("identifier is required"), errs.ErrValidation)
	}
	if len(identifier) == periodIDLen && isDigits(identifier) && !IsPeriodScoped(identifier) {
		return errs.Wrapf(ErrMistyped, "identifier %s", identifier)
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
