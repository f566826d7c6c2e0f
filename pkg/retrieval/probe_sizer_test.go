package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeSizer(t *testing.T) {
	policy := SizerPolicy{InitialWindow: 4096, MaxTotal: 65536, GrowthFactor: 2}

	t.Run("FirstWindowNeverPastDeclaredSize", func(t *testing.T) {
		for _, size := range []uint64{1, 100, 4095, 4096, 4097, 50000, 1 << 30} {
			p := NewProbeSizer(policy, size, true)
			w, ok := p.First()
			require.True(t, ok)
			assert.Zero(t, w.Offset)
			assert.LessOrEqual(t, w.End(), size, "size %d", size)
			assert.Positive(t, w.Length)
		}
	})

	t.Run("DoublesUntilCapped", func(t *testing.T) {
		p := NewProbeSizer(policy, 2_000_000, true)

		var windows []ByteWindow
		w, ok := p.First()
		for ok {
			windows = append(windows, w)
			w, ok = p.Next(w.End(), 0)
		}

		assert.Equal(t, []ByteWindow{
			{Offset: 0, Length: 4096},
			{Offset: 4096, Length: 8192},
			{Offset: 12288, Length: 16384},
			{Offset: 28672, Length: 32768},
			{Offset: 61440, Length: 4096},
		}, windows)
	})

	t.Run("WindowEndsIncreaseAndStayBounded", func(t *testing.T) {
		for _, growth := range []uint64{2, 3, 4} {
			p := NewProbeSizer(SizerPolicy{InitialWindow: 1000, MaxTotal: 1_000_000, GrowthFactor: growth}, 0, true)
			var prev ByteWindow
			w, ok := p.First()
			n := 0
			for ok {
				if n > 0 {
					assert.Greater(t, w.End(), prev.End())
					if w.End() < p.Limit() {
						assert.GreaterOrEqual(t, w.Length, prev.Length)
					}
				}
				assert.LessOrEqual(t, w.End(), uint64(1_000_000))
				prev = w
				n++
				w, ok = p.Next(prev.End(), 0)
			}
			assert.Equal(t, uint64(1_000_000), prev.End())
		}
	})

	t.Run("HintLargerThanGrowthWins", func(t *testing.T) {
		p := NewProbeSizer(policy, 0, true)
		w, _ := p.First()
		next, ok := p.Next(w.End(), 20000)
		require.True(t, ok)
		assert.Equal(t, ByteWindow{Offset: 4096, Length: 20000}, next)
	})

	t.Run("ClampsToDeclaredSize", func(t *testing.T) {
		p := NewProbeSizer(policy, 10000, true)
		w, _ := p.First()
		w, ok := p.Next(w.End(), 0)
		require.True(t, ok)
		assert.Equal(t, ByteWindow{Offset: 4096, Length: 5904}, w)

		_, ok = p.Next(w.End(), 0)
		assert.False(t, ok)
	})

	t.Run("UnknownSizeWithoutIncrementalDecoderReadsOnce", func(t *testing.T) {
		p := NewProbeSizer(policy, 0, false)
		w, ok := p.First()
		require.True(t, ok)
		assert.Equal(t, ByteWindow{Offset: 0, Length: 65536}, w)

		_, ok = p.Next(w.End(), 0)
		assert.False(t, ok)
	})

	t.Run("UnknownSizeWithIncrementalDecoderGrows", func(t *testing.T) {
		p := NewProbeSizer(policy, 0, true)
		w, ok := p.First()
		require.True(t, ok)
		assert.Equal(t, uint64(4096), w.Length)
	})

	t.Run("InitialWindowLargerThanObject", func(t *testing.T) {
		p := NewProbeSizer(SizerPolicy{InitialWindow: 65536, MaxTotal: 1 << 20, GrowthFactor: 2}, 3000, true)
		w, ok := p.First()
		require.True(t, ok)
		assert.Equal(t, ByteWindow{Offset: 0, Length: 3000}, w)
	})
}
