package transfer

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// GenerateCode returns a random security code between 1000 and 9999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generating security code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}
