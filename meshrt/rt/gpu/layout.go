package gpu

import (
	"fmt"

	"github.com/gekko3d/scenegeom/meshrt/rt/core"
	"github.com/google/uuid"
)

const (
	// FrameHeaderSize holds the view-projection and previous view-projection.
	FrameHeaderSize    = 128
	StorageAlignment   = 64
	MeshBlockSize      = 128 // world, previous world
	PrimitiveBlockSize = 80  // factors, alpha cutoff, texture mask, render type, pad
	AabbIndicesSize    = uint64(len(core.AabbLineIndices)) * 4
)

// PrimitiveEntry is the global placement of one (model, node, primitive)
// instance. Its position in Layout.Entries is its IndirectIndex.
type PrimitiveEntry struct {
	Model     int
	Node      int
	Primitive int

	FirstIndex       uint32
	IndicesCount     uint32
	VertexOffset     uint32
	PositionsOffset  uint32
	AabbVertexOffset uint32

	// Absolute byte offsets into every frame storage buffer.
	MeshDataOffset      uint64
	PrimitiveDataOffset uint64
}

// ModelLayout holds the per-model bases into the combined arrays.
type ModelLayout struct {
	ID             uuid.UUID
	BaseIndex      uint32
	BaseVertex     uint32
	BasePosition   uint32
	BaseAabbVertex uint32

	// Per node: index of the node's mesh block, or -1.
	MeshBlocks []int
	// Per node: index into Layout.Entries of primitive 0, or -1.
	FirstEntry []int
}

// Layout is the immutable result of planning a rebuild. Model-local
// primitive offsets are left untouched; everything global lives here.
type Layout struct {
	Models   []ModelLayout
	Entries  []PrimitiveEntry
	Template []DrawIndexedIndirect

	IndicesCount      uint32
	VerticesCount     uint32
	PositionsCount    uint32
	AabbVerticesCount uint32

	// Combined buffer regions, in upload order.
	IndicesOffset      uint64
	AabbIndicesOffset  uint64
	VerticesOffset     uint64
	PositionsOffset    uint64
	AabbVerticesOffset uint64
	CombinedSize       uint64

	// Per-frame storage regions.
	IDsOffset           uint64
	MeshDataOffset      uint64
	PrimitiveDataOffset uint64
	StorageSize         uint64
	MeshBlockCount      int
}

// PlanLayout assigns global offsets for models packed in order. It has no
// side effects, so a failure leaves any live buffers alone.
func PlanLayout(models []*core.Model) (*Layout, error) {
	expected := 0
	for _, m := range models {
		expected += m.PrimitiveCount()
	}
	return planLayout(models, expected)
}

func planLayout(models []*core.Model, expected int) (*Layout, error) {
	l := &Layout{Models: make([]ModelLayout, len(models))}

	var indices, vertices, positions, aabbs uint64
	for mi, m := range models {
		ml := ModelLayout{
			ID:             m.ID,
			BaseIndex:      uint32(indices),
			BaseVertex:     uint32(vertices),
			BasePosition:   uint32(positions),
			BaseAabbVertex: uint32(aabbs),
			MeshBlocks:     make([]int, m.Nodes.Len()),
			FirstEntry:     make([]int, m.Nodes.Len()),
		}
		for n := 0; n < m.Nodes.Len(); n++ {
			ml.MeshBlocks[n], ml.FirstEntry[n] = -1, -1
			mesh := m.NodeMesh(n)
			if mesh == nil {
				continue
			}
			ml.MeshBlocks[n] = l.MeshBlockCount
			l.MeshBlockCount++
			ml.FirstEntry[n] = len(l.Entries)
			for p, prim := range mesh.Primitives {
				e := PrimitiveEntry{
					Model:            mi,
					Node:             n,
					Primitive:        p,
					FirstIndex:       ml.BaseIndex + prim.IndexOffset,
					IndicesCount:     prim.IndicesCount,
					VertexOffset:     ml.BaseVertex + prim.VertexOffset,
					PositionsOffset:  ml.BasePosition + prim.VertexOffset,
					AabbVertexOffset: ml.BaseAabbVertex + prim.AabbVertexOffset,
				}
				l.Template = append(l.Template, DrawIndexedIndirect{
					IndexCount:    e.IndicesCount,
					InstanceCount: 1,
					FirstIndex:    e.FirstIndex,
					VertexOffset:  int32(e.VertexOffset),
					FirstInstance: uint32(len(l.Entries)),
				})
				l.Entries = append(l.Entries, e)
			}
		}
		l.Models[mi] = ml

		indices += uint64(len(m.Indices))
		vertices += uint64(len(m.Vertices))
		positions += uint64(len(m.PositionUvs))
		aabbs += uint64(len(m.AabbVertices))
	}
	if indices > 1<<32-1 || vertices > 1<<31-1 {
		return nil, fmt.Errorf("combined geometry too large: %d indices, %d vertices", indices, vertices)
	}
	if err := checkTemplate(len(l.Template), expected); err != nil {
		return nil, err
	}

	l.IndicesCount = uint32(indices)
	l.VerticesCount = uint32(vertices)
	l.PositionsCount = uint32(positions)
	l.AabbVerticesCount = uint32(aabbs)

	l.IndicesOffset = 0
	l.AabbIndicesOffset = indices * 4
	l.VerticesOffset = l.AabbIndicesOffset + AabbIndicesSize
	l.PositionsOffset = l.VerticesOffset + vertices*core.VertexSize
	l.AabbVerticesOffset = l.PositionsOffset + positions*core.PositionUvVertexSize
	l.CombinedSize = l.AabbVerticesOffset + aabbs*core.AabbVertexSize

	count := uint64(len(l.Entries))
	l.IDsOffset = alignUp(FrameHeaderSize, StorageAlignment)
	l.MeshDataOffset = alignUp(l.IDsOffset+count*4, StorageAlignment)
	l.PrimitiveDataOffset = alignUp(l.MeshDataOffset+uint64(l.MeshBlockCount)*MeshBlockSize, StorageAlignment)
	l.StorageSize = l.PrimitiveDataOffset + count*PrimitiveBlockSize

	for i := range l.Entries {
		e := &l.Entries[i]
		e.MeshDataOffset = l.MeshDataOffset + uint64(l.Models[e.Model].MeshBlocks[e.Node])*MeshBlockSize
		e.PrimitiveDataOffset = l.PrimitiveDataOffset + uint64(i)*PrimitiveBlockSize
	}
	return l, nil
}

func checkTemplate(got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %d commands for %d primitives", ErrIndirectCountMismatch, got, want)
	}
	return nil
}

// IndirectIndex returns the template position of (model, node, primitive),
// or -1 when the node has no such primitive.
func (l *Layout) IndirectIndex(model, node, primitive int) int {
	if model < 0 || model >= len(l.Models) {
		return -1
	}
	ml := &l.Models[model]
	if node < 0 || node >= len(ml.FirstEntry) || ml.FirstEntry[node] < 0 {
		return -1
	}
	i := ml.FirstEntry[node] + primitive
	if primitive < 0 || i >= len(l.Entries) {
		return -1
	}
	if e := &l.Entries[i]; e.Model != model || e.Node != node {
		return -1
	}
	return i
}

// MeshBlockOffset returns the storage byte offset of a node's mesh block.
func (l *Layout) MeshBlockOffset(model, node int) (uint64, bool) {
	if model < 0 || model >= len(l.Models) {
		return 0, false
	}
	ml := &l.Models[model]
	if node < 0 || node >= len(ml.MeshBlocks) || ml.MeshBlocks[node] < 0 {
		return 0, false
	}
	return l.MeshDataOffset + uint64(ml.MeshBlocks[node])*MeshBlockSize, true
}

// PrimitivesCount is the number of template entries.
func (l *Layout) PrimitivesCount() int { return len(l.Entries) }
