package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorPreservesOrder(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Send(Event{Type: TypeStatus, Content: fmt.Sprintf("ev-%d", i)}))
	}

	evs := c.Events()
	require.Len(t, evs, 10)
	for i, ev := range evs {
		assert.Equal(t, fmt.Sprintf("ev-%d", i), ev.Content)
	}
}

func TestCollectorEventsReturnsCopy(t *testing.T) {
	c := NewCollector()
	require.NoError(t, c.Send(Event{Type: TypeStart}))

	evs := c.Events()
	evs[0].Type = TypeError

	assert.Equal(t, TypeStart, c.Events()[0].Type)
}
