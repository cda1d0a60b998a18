package security

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/arklim/otp-auth-service/internal/core/port"
)

const (
	// OTPAlphabet is the symbol set codes are drawn from.
	OTPAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// OTPLength is the number of symbols per code.
	OTPLength = 6
)

// OTPGenerator draws codes uniformly from OTPAlphabet using crypto/rand.
type OTPGenerator struct {
	length   int
	alphabet string
}

// NewOTPGenerator returns a generator producing OTPLength-symbol codes.
func NewOTPGenerator() *OTPGenerator {
	return &OTPGenerator{length: OTPLength, alphabet: OTPAlphabet}
}

// Generate returns a fresh code. Each symbol is an independent uniform draw.
func (g *OTPGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(g.alphabet)))
	code := make([]byte, g.length)

	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("otp: draw symbol: %w", err)
		}
		code[i] = g.alphabet[n.Int64()]
	}

	return string(code), nil
}

var _ port.CodeGenerator = (*OTPGenerator)(nil)
