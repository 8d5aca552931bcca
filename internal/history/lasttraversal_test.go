package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens/transitlens/internal/segment"
)

func TestLastTraversalLastWriterWins(t *testing.T) {
	c := NewLastTraversalCache()
	key := segment.NewKey("trip-1", 4, segment.TravelTime)
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	c.Put(key, Traversal{VehicleID: "veh-1", DurationMillis: 380_000, ObservedAt: at})
	c.Put(key, Traversal{VehicleID: "veh-2", DurationMillis: 420_000, ObservedAt: at.Add(5 * time.Minute)})

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "veh-2", got.VehicleID)
	assert.Equal(t, 420_000.0, got.DurationMillis)
}

func TestLastTraversalPreceding(t *testing.T) {
	c := NewLastTraversalCache()
	key := segment.NewKey("trip-1", 4, segment.TravelTime)
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c.Put(key, Traversal{VehicleID: "veh-1", DurationMillis: 400_000, ObservedAt: at})

	// A different vehicle on the same day sees the traversal.
	_, ok := c.GetPreceding(key, "veh-2", at.Add(10*time.Minute))
	assert.True(t, ok)

	// The vehicle that made the traversal is not its own predecessor.
	_, ok = c.GetPreceding(key, "veh-1", at.Add(10*time.Minute))
	assert.False(t, ok)

	// Yesterday's traffic does not carry into today.
	_, ok = c.GetPreceding(key, "veh-2", at.Add(24*time.Hour))
	assert.False(t, ok)

	// Unknown segments yield nothing.
	_, ok = c.GetPreceding(segment.NewKey("trip-9", 0, segment.TravelTime), "veh-2", at)
	assert.False(t, ok)
}
