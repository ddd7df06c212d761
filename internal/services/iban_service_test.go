package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIbanService_Generate(t *testing.T) {
	service := NewIbanService()

	for i := 0; i < 50; i++ {
		iban, err := service.Generate()
		require.NoError(t, err)

		assert.Len(t, iban, 23)
		assert.True(t, strings.HasPrefix(iban, "IQ"))
		assert.Equal(t, "BABI", iban[4:8])
		assert.True(t, service.Validate(iban), "generated IBAN failed validation: %s", iban)
	}
}

func TestIbanService_Validate(t *testing.T) {
	service := NewIbanService()

	t.Run("known good IBANs", func(t *testing.T) {
		for _, iban := range []string{
			"IQ94BABI000000000000001",
			"IQ88BABI123456789012345",
			"GB82WEST12345698765432",
			"DE89370400440532013000",
		} {
			assert.True(t, service.Validate(iban), iban)
		}
	})

	t.Run("accepts spaces and lower case", func(t *testing.T) {
		assert.True(t, service.Validate("iq94 babi 0000 0000 0000 001"))
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, iban := range []string{
			"",
			"IQ94",
			"IQ94BABI00000000000000!",
			"IQ00BABI000000000000001",
		} {
			assert.False(t, service.Validate(iban), iban)
		}
	})

	t.Run("rejects any single digit mutation", func(t *testing.T) {
		const iban = "IQ94BABI000000000000001"
		for pos := 8; pos < len(iban); pos++ {
			mutated := []byte(iban)
			mutated[pos] = '0' + (mutated[pos]-'0'+1)%10
			assert.False(t, service.Validate(string(mutated)), string(mutated))
		}
	})

	t.Run("treasury account IBAN is valid", func(t *testing.T) {
		assert.True(t, service.Validate(TreasuryIban))
	})
}
