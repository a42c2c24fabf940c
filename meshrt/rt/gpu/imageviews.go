package gpu

import (
	"github.com/gekko3d/scenegeom/meshrt/rt/core"
)

// PrimitiveConstantsSize is the byte size of one constants record: alpha
// cutoff, mesh data offset, primitive data offset, texture mask, five view
// indices, render type and two words of padding.
const PrimitiveConstantsSize = 48

// ImageViewTable is the deduplicated list of textures bound by the
// combined draw, indexed by the constants buffer.
type ImageViewTable struct {
	Views []core.TextureID
	index map[core.TextureID]uint32
	dirty []bool
}

func newImageViewTable(frames int) *ImageViewTable {
	t := &ImageViewTable{
		index: make(map[core.TextureID]uint32),
		dirty: make([]bool, frames),
	}
	for f := range t.dirty {
		t.dirty[f] = true
	}
	return t
}

// add returns the view index of id, appending it on first sight.
func (t *ImageViewTable) add(id core.TextureID) uint32 {
	if i, ok := t.ViewIndex(id); ok {
		return i
	}
	i := uint32(len(t.Views))
	t.index[id] = i
	t.Views = append(t.Views, id)
	return i
}

// ViewIndex returns the index of id in the table.
func (t *ImageViewTable) ViewIndex(id core.TextureID) (uint32, bool) {
	i, ok := t.index[id]
	return i, ok
}

func (t *ImageViewTable) Dirty(frame int) bool {
	return frame >= 0 && frame < len(t.dirty) && t.dirty[frame]
}

func (t *ImageViewTable) ClearDirty(frame int) {
	if frame >= 0 && frame < len(t.dirty) {
		t.dirty[frame] = false
	}
}

// buildConstants fills the view table and encodes one constants record per
// layout entry. Empty texture slots fall back to the default resources.
func buildConstants(l *Layout, models []*core.Model, defaults core.DefaultResources, views *ImageViewTable) []byte {
	out := make([]byte, 0, len(l.Entries)*PrimitiveConstantsSize)
	for _, e := range l.Entries {
		prim := models[e.Model].Primitive(e.Node, e.Primitive)
		out = appendFloat(out, prim.AlphaCutoff)
		out = appendUint32(out, uint32(e.MeshDataOffset))
		out = appendUint32(out, uint32(e.PrimitiveDataOffset))
		out = appendUint32(out, prim.TextureMask)
		for slot := 0; slot < core.TextureSlots; slot++ {
			id := prim.Images[slot]
			if id.IsNil() {
				id = defaults.Fallback(slot)
			}
			out = appendUint32(out, views.add(id))
		}
		out = appendUint32(out, uint32(prim.RenderType))
		out = appendUint32(out, 0)
		out = appendUint32(out, 0)
	}
	return out
}

// primitiveBlocks encodes the per-entry material block written into every
// frame storage buffer.
func primitiveBlocks(l *Layout, models []*core.Model) []byte {
	out := make([]byte, 0, len(l.Entries)*PrimitiveBlockSize)
	for _, e := range l.Entries {
		prim := models[e.Model].Primitive(e.Node, e.Primitive)
		out = appendMat4(out, prim.MaterialFactors)
		out = appendFloat(out, prim.AlphaCutoff)
		out = appendUint32(out, prim.TextureMask)
		out = appendUint32(out, uint32(prim.RenderType))
		out = appendUint32(out, 0)
	}
	return out
}
