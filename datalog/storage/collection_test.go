package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/provenance"
)

func TestCollectionDedupMerge(t *testing.T) {
	c := NewCollection[float64]("edge", provenance.NewMinMaxProb())

	changed, added := c.Insert(0.3, datalog.Tuple{int32(0), int32(1)})
	assert.True(t, changed)
	assert.True(t, added)

	// Same tuple, better tag: merged with max
	changed, added = c.Insert(0.7, datalog.Tuple{int32(0), int32(1)})
	assert.True(t, changed)
	assert.False(t, added)

	// Same tuple, worse tag: no change
	changed, added = c.Insert(0.5, datalog.Tuple{int32(0), int32(1)})
	assert.False(t, changed)
	assert.False(t, added)

	require.Equal(t, 1, c.Len())
	tag, ok := c.Get(datalog.Tuple{int32(0), int32(1)})
	require.True(t, ok)
	assert.Equal(t, 0.7, tag)
}

func TestCollectionVariantIdentity(t *testing.T) {
	c := NewCollection[bool]("r", provenance.NewUnit())
	c.Insert(true, datalog.Tuple{int32(1)})
	c.Insert(true, datalog.Tuple{int64(1)})
	c.Insert(true, datalog.Tuple{datalog.Tuple{int32(1), "a"}})
	c.Insert(true, datalog.Tuple{datalog.Tuple{int32(1), "a"}})

	assert.Equal(t, 3, c.Len(), "int32(1) and int64(1) are distinct tuples")
	assert.True(t, c.Contains(datalog.Tuple{int64(1)}))
	assert.False(t, c.Contains(datalog.Tuple{int16(1)}))
}

func TestCollectionZeroTag(t *testing.T) {
	c := NewCollection[bool]("r", provenance.NewUnit())
	changed, added := c.Insert(false, datalog.Tuple{"x"})
	assert.False(t, changed)
	assert.False(t, added)
	assert.Equal(t, 0, c.Len())
}

func TestCollectionInsertionOrder(t *testing.T) {
	c := NewCollection[bool]("r", provenance.NewUnit())
	for _, s := range []string{"c", "a", "b", "a"} {
		c.Insert(true, datalog.Tuple{s})
	}

	var got []string
	c.Each(func(f Fact[bool]) bool {
		got = append(got, f.Tuple[0].(string))
		return true
	})
	assert.Equal(t, []string{"c", "a", "b"}, got)

	got = nil
	c.Each(func(f Fact[bool]) bool {
		got = append(got, f.Tuple[0].(string))
		return false
	})
	assert.Len(t, got, 1)
}

func TestCollectionLookup(t *testing.T) {
	c := NewCollection[bool]("edge", provenance.NewUnit())
	c.Insert(true, datalog.Tuple{int32(0), int32(1)})
	c.Insert(true, datalog.Tuple{int32(0), int32(2)})
	c.Insert(true, datalog.Tuple{int32(1), int32(2)})

	assert.False(t, c.HasIndex([]int{0}))
	slots := c.Lookup([]int{0}, datalog.Tuple{int32(0)})
	assert.Equal(t, []int{0, 1}, slots)
	assert.True(t, c.HasIndex([]int{0}))

	// Existing indexes follow inserts
	c.Insert(true, datalog.Tuple{int32(0), int32(3)})
	slots = c.Lookup([]int{0}, datalog.Tuple{int32(0)})
	require.Len(t, slots, 3)
	assert.Equal(t, datalog.Tuple{int32(0), int32(3)}, c.At(slots[2]).Tuple)

	c.EnsureIndex([]int{1, 0})
	slots = c.Lookup([]int{1, 0}, datalog.Tuple{int32(2), int32(1)})
	assert.Equal(t, []int{2}, slots)

	assert.Empty(t, c.Lookup([]int{0}, datalog.Tuple{int64(0)}), "lookups respect variants")
}

func TestCollectionClearAndClone(t *testing.T) {
	c := NewCollection[bool]("r", provenance.NewUnit())
	c.Insert(true, datalog.Tuple{"a"})
	c.EnsureIndex([]int{0})

	clone := c.Clone()
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.HasIndex([]int{0}))
	assert.Empty(t, c.Lookup([]int{0}, datalog.Tuple{"a"}))

	assert.Equal(t, 1, clone.Len())
	assert.True(t, clone.Contains(datalog.Tuple{"a"}))
}

func TestCollectionTopKMerge(t *testing.T) {
	p := provenance.NewTopKProofs(2, false)
	c := NewCollection[provenance.Proofs]("path", p)

	a := p.FromInput(provenance.Prob(0.6))
	b := p.FromInput(provenance.Prob(0.9))
	tuple := datalog.Tuple{int32(0), int32(2)}

	c.Insert(a, tuple)
	changed, _ := c.Insert(b, tuple)
	assert.True(t, changed)

	changed, _ = c.Insert(p.Add(b, a), tuple)
	assert.False(t, changed, "merging the same proofs saturates")

	tag, _ := c.Get(tuple)
	assert.InDelta(t, 1-(0.4*0.1), p.Weight(tag), 1e-12)
}
