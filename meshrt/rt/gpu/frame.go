package gpu

import (
	"fmt"

	"github.com/gekko3d/scenegeom/meshrt/rt/core"
	"github.com/gekko3d/scenegeom/meshrt/rt/cull"
)

// FrameStore writes the per-frame draw data of one rebuild into its N
// storage and indirect buffers.
type FrameStore struct {
	res *Resources

	// primed[f] is false until slot f received every mesh block once.
	primed []bool

	counts  [core.RenderTypeCount]uint32
	offsets [core.RenderTypeCount]uint64
}

func NewFrameStore(res *Resources) *FrameStore {
	return &FrameStore{res: res, primed: make([]bool, len(res.Storages))}
}

func (s *FrameStore) Frames() int { return len(s.res.Storages) }

// Write fills slot frame from the sorted lists. With no draws neither buffer
// of the slot is touched.
func (s *FrameStore) Write(frame int, cam core.Camera, models []*core.Model, lists *cull.DrawLists) error {
	if frame < 0 || frame >= s.Frames() {
		panic(fmt.Sprintf("frame slot %d out of range [0,%d)", frame, s.Frames()))
	}
	l := s.res.Layout

	var first uint64
	for b := range s.counts {
		s.counts[b] = uint32(len(lists.Buckets[b]))
		s.offsets[b] = first * DrawIndexedIndirectSize
		first += uint64(s.counts[b])
	}
	if first == 0 {
		return nil
	}

	ids := make([]byte, 0, first*4)
	commands := make([]DrawIndexedIndirect, 0, first)
	var missing error
	lists.Each(func(i int, d cull.DrawInfo) {
		idx := l.IndirectIndex(d.Model, d.Node, d.Primitive)
		if idx < 0 {
			if missing == nil {
				missing = fmt.Errorf("draw %d: no layout entry for model %d node %d primitive %d", i, d.Model, d.Node, d.Primitive)
			}
			return
		}
		ids = appendUint32(ids, uint32(idx))
		cmd := l.Template[idx]
		cmd.FirstInstance = uint32(i)
		commands = append(commands, cmd)
	})
	if missing != nil {
		return missing
	}

	header := make([]byte, 0, FrameHeaderSize)
	header = appendMat4(header, cam.ViewProjection())
	header = appendMat4(header, cam.PreviousViewProjection())

	ranges := []Range{{Offset: 0, Data: header}, {Offset: l.IDsOffset, Data: ids}}
	ranges = append(ranges, s.meshBlocks(frame, models)...)
	if err := writeMapped(s.res.Storages[frame], ranges...); err != nil {
		return fmt.Errorf("storage slot %d: %w", frame, err)
	}
	if err := writeMapped(s.res.Indirects[frame], Range{Offset: 0, Data: commandsBytes(commands)}); err != nil {
		return fmt.Errorf("indirect slot %d: %w", frame, err)
	}

	s.clearUniforms(frame, models)
	s.primed[frame] = true
	return nil
}

// meshBlocks collects world and previous world of every node whose slot copy
// is stale.
func (s *FrameStore) meshBlocks(frame int, models []*core.Model) []Range {
	l := s.res.Layout
	var out []Range
	for mi, m := range models {
		if !s.primed[frame] || m.Nodes.HasDirtyUniforms(frame) {
			for n := 0; n < m.Nodes.Len(); n++ {
				info := m.Nodes.Node(n)
				if s.primed[frame] && (frame >= len(info.DirtyUniforms) || !info.DirtyUniforms[frame]) {
					continue
				}
				off, ok := l.MeshBlockOffset(mi, n)
				if !ok {
					continue
				}
				block := make([]byte, 0, MeshBlockSize)
				block = appendMat4(block, info.World)
				block = appendMat4(block, info.PreviousWorld)
				out = append(out, Range{Offset: off, Data: block})
			}
		}
	}
	return out
}

func (s *FrameStore) clearUniforms(frame int, models []*core.Model) {
	for _, m := range models {
		for n := 0; n < m.Nodes.Len(); n++ {
			if info := m.Nodes.Node(n); frame < len(info.DirtyUniforms) {
				info.DirtyUniforms[frame] = false
			}
		}
		m.Nodes.ClearDirtyUniforms(frame)
	}
}

// DrawCount is the number of commands of bucket in the last written slot.
func (s *FrameStore) DrawCount(rt core.RenderType) uint32 { return s.counts[rt] }

// IndirectOffset is the byte offset of the first command of bucket.
func (s *FrameStore) IndirectOffset(rt core.RenderType) uint64 { return s.offsets[rt] }

func (s *FrameStore) HasAnyVisibleDraws() bool {
	for _, c := range s.counts {
		if c > 0 {
			return true
		}
	}
	return false
}
