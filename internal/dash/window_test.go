package dash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFragmentWindow(t *testing.T) {
	w := &fragmentWindow{}
	require.True(t, w.empty())
	require.Equal(t, 0, w.size())

	for i := 0; i < 4; i++ {
		w.push(&fragment{
			sequence: uint64(i + 1),
			start:    time.Duration(i) * time.Second,
			duration: 1 * time.Second,
		})
	}

	require.False(t, w.empty())
	require.Equal(t, 4, w.size())
	require.Equal(t, uint64(3), w.at(2).sequence)

	tr := w.trailing(2)
	require.Equal(t, 2, len(tr))
	require.Equal(t, uint64(3), tr[0].sequence)
	require.Equal(t, uint64(4), tr[1].sequence)

	tr = w.trailing(10)
	require.Equal(t, 4, len(tr))
	require.Equal(t, uint64(1), tr[0].sequence)
}
