package exclusive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	t.Run("acquire and release", func(t *testing.T) {
		g := NewGate()
		release, err := g.TryAcquire("recorder")
		require.NoError(t, err)
		assert.Equal(t, "recorder", g.Holder())

		release()
		assert.Empty(t, g.Holder())
	})

	t.Run("busy while held", func(t *testing.T) {
		g := NewGate()
		release, err := g.TryAcquire("recorder")
		require.NoError(t, err)
		defer release()

		_, err = g.TryAcquire("replay")
		require.Error(t, err)

		var busy BusyError
		require.ErrorAs(t, err, &busy)
		assert.Equal(t, "recorder", busy.Holder)
		assert.Equal(t, "replay", busy.Requested)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		g := NewGate()
		release, err := g.TryAcquire("replay")
		require.NoError(t, err)

		release()
		release()

		// A stale second release must not free a newer holder
		release2, err := g.TryAcquire("recorder")
		require.NoError(t, err)
		release()
		assert.Equal(t, "recorder", g.Holder())
		release2()
	})
}
