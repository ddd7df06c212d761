package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Iraq IBAN layout: IQkk BBBB CCCC CCCC CCCC CCC (23 characters).
// kk = MOD-97-10 check digits, BBBB = bank code, then a 15-digit account body.
const (
	ibanCountryCode   = "IQ"
	ibanBankCode      = "BABI"
	ibanAccountDigits = 15
)

var mod97 = big.NewInt(97)

// IbanService produces and validates checksum-bearing account identifiers.
// Generation is pure: uniqueness is enforced by the unique index on
// bank_accounts.iban, and callers retry with a fresh candidate when an
// insert reports a collision.
type IbanService struct{}

func NewIbanService() *IbanService {
	return &IbanService{}
}

// Generate returns a new checksum-valid IBAN candidate.
func (s *IbanService) Generate() (string, error) {
	body, err := randomDigits(ibanAccountDigits)
	if err != nil {
		return "", fmt.Errorf("generating account number: %w", err)
	}

	checkDigits := calculateCheckDigits(ibanCountryCode, ibanBankCode+body)
	return fmt.Sprintf("%s%02d%s%s", ibanCountryCode, checkDigits, ibanBankCode, body), nil
}

// Validate reports whether iban passes the ISO 7064 MOD-97-10 check:
// rotate the first four characters to the end, map letters to two-digit
// numerals, and require the big-integer value mod 97 to equal 1.
func (s *IbanService) Validate(iban string) bool {
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if len(iban) < 15 {
		return false
	}

	rearranged := iban[4:] + iban[:4]
	numeric, ok := toNumeric(rearranged)
	if !ok {
		return false
	}

	value, ok := new(big.Int).SetString(numeric, 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(value, mod97).Int64() == 1
}

// calculateCheckDigits computes the two check digits for country + BBAN:
// value("BBAN" + country + "00") mod 97, check digits = 98 - remainder.
func calculateCheckDigits(countryCode, bban string) int {
	numeric, _ := toNumeric(bban + countryCode + "00")
	value, _ := new(big.Int).SetString(numeric, 10)
	remainder := new(big.Int).Mod(value, mod97).Int64()
	return int(98 - remainder)
}

// toNumeric maps A=10 .. Z=35 and keeps digits; anything else is invalid.
func toNumeric(in string) (string, bool) {
	var sb strings.Builder
	for _, c := range in {
		switch {
		case c >= '0' && c <= '9':
			sb.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			sb.WriteString(fmt.Sprintf("%d", c-'A'+10))
		default:
			return "", false
		}
	}
	return sb.String(), true
}

func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(n)
	for _, b := range buf {
		sb.WriteByte('0' + b%10)
	}
	return sb.String(), nil
}
