package otp

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// CodeLength is the number of decimal digits in every issued code.
const CodeLength = 6

// Generator produces CodeLength-digit numeric codes. Codes carry no
// uniqueness guarantee.
type Generator interface {
	Generate() (string, error)
}

// RandomGenerator draws each digit independently and uniformly from 0-9.
type RandomGenerator struct {
	entropy io.Reader
}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{entropy: rand.Reader}
}

func (g *RandomGenerator) Generate() (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)

	ten := big.NewInt(10)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(g.entropy, ten)
		if err != nil {
			return "", fmt.Errorf("failed to draw code digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// HOTPGenerator derives codes with RFC 4226 truncation from a fresh random
// secret and counter per call.
type HOTPGenerator struct {
	entropy io.Reader
}

func NewHOTPGenerator() *HOTPGenerator {
	return &HOTPGenerator{entropy: rand.Reader}
}

func (g *HOTPGenerator) Generate() (string, error) {
	secret := make([]byte, 20)
	if _, err := io.ReadFull(g.entropy, secret); err != nil {
		return "", fmt.Errorf("failed to read hotp secret: %w", err)
	}

	var counterBytes [8]byte
	if _, err := io.ReadFull(g.entropy, counterBytes[:]); err != nil {
		return "", fmt.Errorf("failed to read hotp counter: %w", err)
	}

	code, err := hotp.GenerateCodeCustom(
		base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret),
		binary.BigEndian.Uint64(counterBytes[:]),
		hotp.ValidateOpts{
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to derive hotp code: %w", err)
	}

	return code, nil
}

// NewGenerator returns the generator registered under name ("random" or "hotp").
func NewGenerator(name string) (Generator, error) {
	switch name {
	case "", "random":
		return NewRandomGenerator(), nil
	case "hotp":
		return NewHOTPGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown code generator: %s", name)
	}
}

// IsWellFormed reports whether code is exactly CodeLength ASCII digits.
func IsWellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
