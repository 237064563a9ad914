package observer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	requireT := require.New(t)

	var r Registry[string]
	h1 := r.Attach("a")
	h2 := r.Attach("b")
	h3 := r.Attach("c")
	requireT.Equal(3, r.Count())

	requireT.Equal(2, r.Detach(h2))

	var notified []string
	r.Notify(func(o string) {
		notified = append(notified, o)
	})
	requireT.Equal([]string{"a", "c"}, notified)

	h4 := r.Attach("d")
	requireT.Equal(h2, h4)

	notified = nil
	r.Notify(func(o string) {
		notified = append(notified, o)
	})
	requireT.Equal([]string{"a", "d", "c"}, notified)

	requireT.Equal(2, r.Detach(h1))
	requireT.Equal(1, r.Detach(h3))
	requireT.Equal(0, r.Detach(h4))
	requireT.Panics(func() {
		r.Detach(h4)
	})
}
