package cull

import (
	"cmp"
	"slices"

	"github.com/gekko3d/scenegeom/meshrt/rt/core"
)

// DrawInfo is one visible primitive instance. Model indexes the slice the
// pass was run over.
type DrawInfo struct {
	Model     int
	Node      int
	Primitive int
	Distance  float32 // squared, camera to world box center
}

// DrawLists holds the visible draws of one frame per render bucket.
type DrawLists struct {
	Buckets [core.RenderTypeCount][]DrawInfo
}

// Reserve clears the lists and grows each bucket to its static maximum.
func (d *DrawLists) Reserve(models []*core.Model) {
	var counts [core.RenderTypeCount]int
	for _, m := range models {
		c := m.BucketCounts()
		for b := range counts {
			counts[b] += c[b]
		}
	}
	for b := range d.Buckets {
		if cap(d.Buckets[b]) < counts[b] {
			d.Buckets[b] = make([]DrawInfo, 0, counts[b])
		}
		d.Buckets[b] = d.Buckets[b][:0]
	}
}

func (d *DrawLists) Append(rt core.RenderType, info DrawInfo) {
	d.Buckets[rt] = append(d.Buckets[rt], info)
}

func (d *DrawLists) Opaque() []DrawInfo     { return d.Buckets[core.RenderOpaque] }
func (d *DrawLists) AlphaCut() []DrawInfo   { return d.Buckets[core.RenderAlphaCut] }
func (d *DrawLists) AlphaBlend() []DrawInfo { return d.Buckets[core.RenderAlphaBlend] }

func (d *DrawLists) Count(rt core.RenderType) int { return len(d.Buckets[rt]) }

func (d *DrawLists) Len() int {
	n := 0
	for b := range d.Buckets {
		n += len(d.Buckets[b])
	}
	return n
}

// Sort orders Opaque front to back and both alpha buckets back to front.
// Ties keep their join order.
func (d *DrawLists) Sort() {
	slices.SortStableFunc(d.Buckets[core.RenderOpaque], func(a, b DrawInfo) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	for _, rt := range []core.RenderType{core.RenderAlphaCut, core.RenderAlphaBlend} {
		slices.SortStableFunc(d.Buckets[rt], func(a, b DrawInfo) int {
			return cmp.Compare(b.Distance, a.Distance)
		})
	}
}

// Each visits every draw in Opaque, AlphaCut, AlphaBlend order.
func (d *DrawLists) Each(fn func(i int, info DrawInfo)) {
	i := 0
	for b := range d.Buckets {
		for _, info := range d.Buckets[b] {
			fn(i, info)
			i++
		}
	}
}
