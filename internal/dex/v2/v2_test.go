package v2

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountOutGolden(t *testing.T) {
	// reserves (1,000,000, 500), amountIn 1,000:
	// floor(1000*997*500 / (1,000,000*1000 + 1000*997))
	out := AmountOut(big.NewInt(1_000), big.NewInt(1_000_000), big.NewInt(500))

	num := new(big.Int).Mul(big.NewInt(1_000*997), big.NewInt(500))
	den := new(big.Int).Add(big.NewInt(1_000_000*1000), big.NewInt(1_000*997))
	want := new(big.Int).Div(num, den)

	assert.Equal(t, want.String(), out.String())
}

func TestAmountOutBelowReserveOut(t *testing.T) {
	reserveIn := big.NewInt(1_000_000)
	reserveOut := big.NewInt(500)

	for _, in := range []int64{1, 1_000, 1_000_000, 100_000_000} {
		out := AmountOut(big.NewInt(in), reserveIn, reserveOut)
		require.True(t, out.Cmp(reserveOut) < 0,
			"amountIn=%d: output %s must stay below reserveOut", in, out)
	}
}

func TestAmountOutMonotonic(t *testing.T) {
	reserveIn := big.NewInt(5_000_000)
	reserveOut := big.NewInt(2_500)

	prev := big.NewInt(-1)
	for in := int64(1); in <= 1_000_000; in *= 10 {
		out := AmountOut(big.NewInt(in), reserveIn, reserveOut)
		require.True(t, out.Cmp(prev) >= 0,
			"output must be non-decreasing in amountIn (in=%d)", in)
		prev = out
	}
}

func TestAmountOutDegenerateInputs(t *testing.T) {
	zero := big.NewInt(0)
	assert.Equal(t, 0, AmountOut(zero, big.NewInt(10), big.NewInt(10)).Sign())
	assert.Equal(t, 0, AmountOut(big.NewInt(10), zero, big.NewInt(10)).Sign())
	assert.Equal(t, 0, AmountOut(big.NewInt(10), big.NewInt(10), zero).Sign())
	assert.Equal(t, 0, AmountOut(nil, big.NewInt(10), big.NewInt(10)).Sign())
}

func TestAmountOutDoesNotMutateInputs(t *testing.T) {
	in := big.NewInt(1_000)
	rIn := big.NewInt(1_000_000)
	rOut := big.NewInt(500)
	AmountOut(in, rIn, rOut)
	assert.Equal(t, int64(1_000), in.Int64())
	assert.Equal(t, int64(1_000_000), rIn.Int64())
	assert.Equal(t, int64(500), rOut.Int64())
}
