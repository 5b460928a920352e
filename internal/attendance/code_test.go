package attendance

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := GenerateCode()
		require.Len(t, code, 5)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 10000)
		assert.LessOrEqual(t, n, 99999)
	}
}
