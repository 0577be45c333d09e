// FILE: book_test.go
package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookFenceAdmitsFirstSeenThenOnlyNewer(t *testing.T) {
	b := NewOrderBook()

	assert.True(t, b.ShouldApply("o1", 100))
	b.Advance("o1", 100)

	assert.False(t, b.ShouldApply("o1", 100), "same stamp is a duplicate")
	assert.False(t, b.ShouldApply("o1", 99), "older stamp is stale")
	assert.True(t, b.ShouldApply("o1", 101))

	// Other ids are fenced independently.
	assert.True(t, b.ShouldApply("o2", 1))
}

func TestBookFenceSurvivesRemoval(t *testing.T) {
	b := NewOrderBook()
	b.Track(Order{ID: "o1", Instrument: testSpot, MsgTime: 100})
	b.Advance("o1", 100)

	b.Remove("o1")
	assert.False(t, b.Known("o1"))
	assert.True(t, b.Seen("o1"))
	assert.False(t, b.ShouldApply("o1", 100))
}

func TestBookTrackStoresCopy(t *testing.T) {
	b := NewOrderBook()
	o := Order{ID: "o1", Instrument: testSpot, Price: 100}
	b.Track(o)
	o.Price = 200

	got, ok := b.Get("o1")
	assert.True(t, ok)
	assert.Equal(t, 100.0, got.Price)

	got.Price = 300
	again, _ := b.Get("o1")
	assert.Equal(t, 100.0, again.Price)
}

func TestBookHasResting(t *testing.T) {
	b := NewOrderBook()
	assert.False(t, b.HasResting(testSpot))

	b.Track(Order{ID: "o1", Instrument: testSpot})
	assert.True(t, b.HasResting(testSpot))
	assert.False(t, b.HasResting(testPerp))

	b.Remove("o1")
	assert.False(t, b.HasResting(testSpot))
}

func TestBookAllSortedByID(t *testing.T) {
	b := NewOrderBook()
	b.Track(Order{ID: "c"})
	b.Track(Order{ID: "a"})
	b.Track(Order{ID: "b"})

	all := b.All()
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, 3, b.Len())
}
