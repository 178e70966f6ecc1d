// notify_test.go - Tests for observer registration and change dispatch.

package notify

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietHub() *Hub {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewHub(l)
}

func TestHub_DeliversToChannelObserversOnly(t *testing.T) {
	h := quietHub()
	var carriers, sims []Change
	h.Register(Carriers, ObserverFunc(func(c Change) { carriers = append(carriers, c) }))
	h.Register(SimInfo, ObserverFunc(func(c Change) { sims = append(sims, c) }))

	sent := h.Notify(Carriers, Change{Op: "insert", Count: 1})
	require.Len(t, carriers, 1)
	require.Empty(t, sims)
	require.Equal(t, Carriers, carriers[0].Channel)
	require.Equal(t, sent.ID, carriers[0].ID)
	require.False(t, carriers[0].At.IsZero())
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	h := quietHub()
	n := 0
	unregister := h.Register(Carriers, ObserverFunc(func(Change) { n++ }))
	h.Notify(Carriers, Change{})
	unregister()
	unregister()
	h.Notify(Carriers, Change{})
	require.Equal(t, 1, n)
	require.Zero(t, h.Observers(Carriers))
}

func TestHub_PanickingObserverDoesNotBlockOthers(t *testing.T) {
	h := quietHub()
	n := 0
	h.Register(Carriers, ObserverFunc(func(Change) { panic("observer bug") }))
	h.Register(Carriers, ObserverFunc(func(Change) { n++ }))
	h.Notify(Carriers, Change{})
	require.Equal(t, 1, n)
}

func TestHub_ChangeIDsAreOrdered(t *testing.T) {
	h := quietHub()
	a := h.Notify(SimInfo, Change{})
	b := h.Notify(SimInfo, Change{})
	require.Negative(t, a.ID.Compare(b.ID))
}

func TestHub_SubscribeBuffersAndDrops(t *testing.T) {
	h := quietHub()
	ch, cancel := h.Subscribe(CarriersDM, 1)
	h.Notify(CarriersDM, Change{Op: "update"})
	h.Notify(CarriersDM, Change{Op: "delete"})

	got := <-ch
	require.Equal(t, "update", got.Op)
	select {
	case c := <-ch:
		t.Fatalf("unexpected buffered change %v", c)
	default:
	}

	cancel()
	_, ok := <-ch
	require.False(t, ok)
	h.Notify(CarriersDM, Change{})
}
