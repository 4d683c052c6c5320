package concurrency

import (
	stdctx "context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodecount/pkg/config"
	"barcodecount/pkg/context"
)

func opCtx(cores int) *context.OperationContext {
	return context.NewContext(stdctx.Background(), &config.Config{Cores: cores}, nil)
}

func TestMapPreservesOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	for _, cores := range []int{1, 4} {
		t.Run("cores="+strconv.Itoa(cores), func(t *testing.T) {
			out, err := Map(opCtx(cores), items, func(v int) (string, error) { return strconv.Itoa(v * 2), nil })
			require.NoError(t, err)
			require.Len(t, out, 50)
			assert.Equal(t, "0", out[0])
			assert.Equal(t, "98", out[49])
		})
	}
}

func TestMapEmpty(t *testing.T) {
	out, err := Map(opCtx(2), []int(nil), func(v int) (int, error) { return v, nil })
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestForEachReturnsError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	err := ForEach(opCtx(3), []int{1, 2, 3, 4, 5, 6}, func(_ int, v int) error {
		calls.Add(1)
		if v == 4 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Positive(t, calls.Load())
}

func TestForEachNilContextRunsSequentially(t *testing.T) {
	seen := []int{}
	require.NoError(t, ForEach(nil, []int{3, 1, 2}, func(i int, v int) error {
		seen = append(seen, v)
		return nil
	}))
	assert.Equal(t, []int{3, 1, 2}, seen)
}

func TestCanceledContextStops(t *testing.T) {
	ctx := opCtx(1)
	cctx, cancel := ctx.WithCancel()
	cancel()
	err := ForEach(cctx, []int{1}, func(int, int) error { return nil })
	assert.ErrorIs(t, err, stdctx.Canceled)
}
