package douban

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticSettings_SetNotifiesSubscribers(t *testing.T) {
	t.Parallel()
	src := NewStaticSettings(Settings{Cookie: "bid=1"})
	require.Equal(t, "bid=1", src.Current().Cookie)

	var first, second []Settings
	src.Subscribe(func(s Settings) { first = append(first, s) })
	src.Subscribe(func(s Settings) {
		second = append(second, s)
		// Subscribing from a callback must not deadlock or join this round.
		src.Subscribe(func(Settings) {})
	})

	src.Set(Settings{Cookie: "dbcl2=x", AvoidRiskControl: true})
	want := []Settings{{Cookie: "dbcl2=x", AvoidRiskControl: true}}
	require.Equal(t, want, first)
	require.Equal(t, want, second)
	require.Equal(t, want[0], src.Current())
}
