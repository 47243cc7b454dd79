package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	// CodeMin and CodeMax bound the game code range. Three digits keep
	// codes easy to read out loud between friends. The low entropy is
	// an accepted trade-off: codes gate a lobby, they don't
	// authenticate anyone.
	CodeMin = 100
	CodeMax = 999
)

// GenerateGameCode creates a random 3-digit numeric game code.
func GenerateGameCode() (string, error) {
	span := big.NewInt(int64(CodeMax - CodeMin + 1))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+CodeMin, 10), nil
}

// IsValidGameCode checks if a game code is well-formed.
func IsValidGameCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return n >= CodeMin && n <= CodeMax
}
