package session

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/mcdev12/dinnerpick/go/internal/models"
)

// CodeGenerator produces candidate session codes.
type CodeGenerator func() (string, error)

var alphabetSize = big.NewInt(int64(len(models.SessionCodeAlphabet)))

// GenerateCode returns a random session code using crypto/rand.
func GenerateCode() (string, error) {
	code := make([]byte, models.SessionCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		code[i] = models.SessionCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
