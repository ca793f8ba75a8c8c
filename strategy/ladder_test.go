package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestFirstLayerAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		total  string
		ratio  string
		levels int
		want   string
	}{
		{"geometric", "500000", "1.5", 10, "4412"},
		{"flat ratio splits evenly", "1000", "1", 4, "250"},
		{"single level takes all", "500000", "1.5", 1, "500000"},
		{"no levels", "500000", "1.5", 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FirstLayerAmount(d(tt.total), d(tt.ratio), tt.levels)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestLadderEscalation(t *testing.T) {
	t.Parallel()

	l, err := NewLadder(d("500000"), d("1.5"), 10)
	require.NoError(t, err)

	a, ok := l.FirstAvailable()
	require.True(t, ok)
	assert.True(t, a.Equal(d("4412")))

	a, ok = l.FirstAvailable()
	require.True(t, ok)
	assert.True(t, a.Equal(d("6618")), "second rung is first × ratio, got %s", a)

	a, ok = l.FirstAvailable()
	require.True(t, ok)
	assert.True(t, a.Equal(d("9927")), "got %s", a)
}

func TestLadderExhaustion(t *testing.T) {
	t.Parallel()

	l, err := NewLadder(d("1000"), d("1"), 2)
	require.NoError(t, err)

	_, ok := l.FirstAvailable()
	require.True(t, ok)
	_, ok = l.FirstAvailable()
	require.True(t, ok)

	_, ok = l.FirstAvailable()
	assert.False(t, ok, "an exhausted ladder sizes nothing")
}

func TestLadderResetAndFirst(t *testing.T) {
	t.Parallel()

	l, err := NewLadder(d("500000"), d("1.5"), 10)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, ok := l.FirstAvailable()
		require.True(t, ok)
	}

	a := l.ResetAndFirst()
	assert.True(t, a.Equal(d("4412")), "a flip restarts from the bottom rung")

	next, ok := l.FirstAvailable()
	require.True(t, ok)
	assert.True(t, next.Equal(d("6618")), "only the first rung stays consumed after reset")
}

func TestLadderMarkConsumedBelow(t *testing.T) {
	t.Parallel()

	l, err := NewLadder(d("500000"), d("1.5"), 10)
	require.NoError(t, err)

	// Restore the depth a 9927-sized position had reached: rungs below it
	// are spent, 9927 itself is the next draw.
	l.MarkConsumedBelow(d("9927"))
	a, ok := l.FirstAvailable()
	require.True(t, ok)
	assert.True(t, a.Equal(d("9927")), "got %s", a)
}

func TestNewLadderValidation(t *testing.T) {
	t.Parallel()

	_, err := NewLadder(d("1000"), d("1.5"), 0)
	assert.Error(t, err)
	_, err = NewLadder(d("0"), d("1.5"), 3)
	assert.Error(t, err)
	_, err = NewLadder(d("1000"), d("0"), 3)
	assert.Error(t, err)
}
