package utils

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGameCodeInRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateGameCode()
		require.NoError(t, err)
		require.Len(t, code, 3)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, CodeMin)
		assert.LessOrEqual(t, n, CodeMax)
		assert.True(t, IsValidGameCode(code))
	}
}

func TestIsValidGameCode(t *testing.T) {
	valid := []string{"100", "555", "999"}
	for _, c := range valid {
		assert.True(t, IsValidGameCode(c), c)
	}
	invalid := []string{"", "99", "1000", "0100", "abc", "12a", "-12"}
	for _, c := range invalid {
		assert.False(t, IsValidGameCode(c), c)
	}
}
