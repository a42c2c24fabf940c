package core

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var ErrInvalidModel = errors.New("invalid model")

// RenderType is the draw bucket of a primitive. It derives from the material
// alpha mode at import time and is never reclassified.
type RenderType uint8

const (
	RenderOpaque RenderType = iota
	RenderAlphaCut
	RenderAlphaBlend

	RenderTypeCount = 3
)

func (r RenderType) String() string {
	switch r {
	case RenderOpaque:
		return "Opaque"
	case RenderAlphaCut:
		return "AlphaCut"
	case RenderAlphaBlend:
		return "AlphaBlend"
	}
	return fmt.Sprintf("RenderType(%d)", uint8(r))
}

// Texture slots of a primitive material.
const (
	TextureBaseColor = iota
	TextureNormal
	TextureMetallicRoughness
	TextureOcclusion
	TextureEmissive

	TextureSlots = 5
)

// TextureID and SamplerID name GPU resources owned by the importer. The nil
// UUID means "unset" and is replaced by a default resource at upload.
type TextureID uuid.UUID
type SamplerID uuid.UUID

func NewTextureID() TextureID { return TextureID(uuid.New()) }
func NewSamplerID() SamplerID { return SamplerID(uuid.New()) }

func (id TextureID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TextureID) String() string { return uuid.UUID(id).String() }
func (id SamplerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SamplerID) String() string { return uuid.UUID(id).String() }

// PrimitiveInfo describes one drawable range of a model. All offsets are
// local to the owning model's arrays; the combined buffer layout keeps the
// global ones.
type PrimitiveInfo struct {
	IndexOffset      uint32
	IndicesCount     uint32
	VertexOffset     uint32 // indices are relative to this vertex
	VerticesCount    uint32
	AabbVertexOffset uint32 // eight debug vertices start here

	BoundingBox AABB
	RenderType  RenderType
	AlphaCutoff float32

	MaterialFactors mgl32.Mat4
	Images          [TextureSlots]TextureID
	Samplers        [TextureSlots]SamplerID
	TextureMask     uint32
}

type MeshInfo struct {
	Name       string
	Primitives []PrimitiveInfo
}

// NodeDesc is the importer's view of a scene node.
type NodeDesc struct {
	Name   string
	Parent int // -1 for roots
	Mesh   int // -1 when the node carries no geometry
	Local  mgl32.Mat4
}

// ModelData is what an importer hands over. NewModel takes ownership.
type ModelData struct {
	Label        string
	Vertices     []Vertex
	PositionUvs  []PositionUvVertex // generated from Vertices when nil
	AabbVertices []AabbVertex       // generated from bounding boxes when nil
	Indices      []uint32
	Meshes       []MeshInfo
	Nodes        []NodeDesc
}

type Model struct {
	ID    uuid.UUID
	Label string

	Vertices     []Vertex
	PositionUvs  []PositionUvVertex
	AabbVertices []AabbVertex
	Indices      []uint32
	Meshes       []MeshInfo
	Nodes        *NodeTable

	matrix mgl32.Mat4
	render atomic.Bool
}

// NewModel validates data and builds the node table. Every node starts dirty
// so the first update computes world matrices and bounds.
func NewModel(data ModelData) (*Model, error) {
	if data.PositionUvs == nil {
		data.PositionUvs = make([]PositionUvVertex, len(data.Vertices))
		for i, v := range data.Vertices {
			data.PositionUvs[i] = PositionUvVertex{Position: v.Position, UV: v.UV}
		}
	}
	if data.AabbVertices == nil {
		data.AabbVertices = generateAabbVertices(data.Meshes)
	}
	if err := validate(&data); err != nil {
		return nil, err
	}

	nodes, err := NewNodeTable(data.Nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidModel, data.Label, err)
	}
	for i := 0; i < nodes.Len(); i++ {
		if mesh := nodes.Node(i).Mesh; mesh >= len(data.Meshes) {
			return nil, fmt.Errorf("%w: %q: node %d references mesh %d of %d", ErrInvalidModel, data.Label, i, mesh, len(data.Meshes))
		}
	}

	return &Model{
		ID:           uuid.New(),
		Label:        data.Label,
		Vertices:     data.Vertices,
		PositionUvs:  data.PositionUvs,
		AabbVertices: data.AabbVertices,
		Indices:      data.Indices,
		Meshes:       data.Meshes,
		Nodes:        nodes,
		matrix:       mgl32.Ident4(),
	}, nil
}

func generateAabbVertices(meshes []MeshInfo) []AabbVertex {
	var out []AabbVertex
	for m := range meshes {
		for p := range meshes[m].Primitives {
			prim := &meshes[m].Primitives[p]
			prim.AabbVertexOffset = uint32(len(out))
			color := PackRGBA8(aabbColor(prim.RenderType))
			for _, c := range prim.BoundingBox.Corners() {
				out = append(out, AabbVertex{Position: c, Color: color})
			}
		}
	}
	return out
}

func aabbColor(r RenderType) mgl32.Vec4 {
	switch r {
	case RenderAlphaCut:
		return mgl32.Vec4{1, 1, 0, 1}
	case RenderAlphaBlend:
		return mgl32.Vec4{0, 0.5, 1, 1}
	}
	return mgl32.Vec4{0, 1, 0, 1}
}

func validate(data *ModelData) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %q: %s", ErrInvalidModel, data.Label, fmt.Sprintf(format, args...))
	}
	if len(data.PositionUvs) != len(data.Vertices) {
		return bad("%d position vertices for %d vertices", len(data.PositionUvs), len(data.Vertices))
	}
	for m, mesh := range data.Meshes {
		for p, prim := range mesh.Primitives {
			if prim.RenderType >= RenderTypeCount {
				return bad("mesh %d primitive %d: unknown render type %d", m, p, prim.RenderType)
			}
			if uint64(prim.IndexOffset)+uint64(prim.IndicesCount) > uint64(len(data.Indices)) {
				return bad("mesh %d primitive %d: index range [%d,+%d) exceeds %d indices", m, p, prim.IndexOffset, prim.IndicesCount, len(data.Indices))
			}
			if uint64(prim.VertexOffset)+uint64(prim.VerticesCount) > uint64(len(data.Vertices)) {
				return bad("mesh %d primitive %d: vertex range [%d,+%d) exceeds %d vertices", m, p, prim.VertexOffset, prim.VerticesCount, len(data.Vertices))
			}
			if uint64(prim.AabbVertexOffset)+8 > uint64(len(data.AabbVertices)) {
				return bad("mesh %d primitive %d: debug box at %d exceeds %d aabb vertices", m, p, prim.AabbVertexOffset, len(data.AabbVertices))
			}
			for _, idx := range data.Indices[prim.IndexOffset : prim.IndexOffset+prim.IndicesCount] {
				if idx >= prim.VerticesCount {
					return bad("mesh %d primitive %d: index %d out of %d vertices", m, p, idx, prim.VerticesCount)
				}
			}
		}
	}
	return nil
}

func (m *Model) Matrix() mgl32.Mat4 { return m.matrix }

// SetMatrix replaces the model root transform and dirties every node.
func (m *Model) SetMatrix(mat mgl32.Mat4) {
	m.matrix = mat
	m.Nodes.MarkAllDirty()
}

func (m *Model) IsRenderReady() bool       { return m.render.Load() }
func (m *Model) SetRenderReady(ready bool) { m.render.Store(ready) }

// NodeMesh returns the mesh owned by node, or nil.
func (m *Model) NodeMesh(node int) *MeshInfo {
	mesh := m.Nodes.Node(node).Mesh
	if mesh < 0 || mesh >= len(m.Meshes) {
		return nil
	}
	return &m.Meshes[mesh]
}

// Primitive resolves a (node, primitive) pair.
func (m *Model) Primitive(node, primitive int) *PrimitiveInfo {
	mesh := m.NodeMesh(node)
	if mesh == nil || primitive < 0 || primitive >= len(mesh.Primitives) {
		return nil
	}
	return &mesh.Primitives[primitive]
}

// PrimitiveCount counts primitives reachable through mesh-owning nodes. A
// mesh shared by two nodes counts twice since each instance draws.
func (m *Model) PrimitiveCount() int {
	n := 0
	for i := 0; i < m.Nodes.Len(); i++ {
		if mesh := m.NodeMesh(i); mesh != nil {
			n += len(mesh.Primitives)
		}
	}
	return n
}

// BucketCounts returns the static per-bucket maximum draw count.
func (m *Model) BucketCounts() [RenderTypeCount]int {
	var out [RenderTypeCount]int
	for i := 0; i < m.Nodes.Len(); i++ {
		mesh := m.NodeMesh(i)
		if mesh == nil {
			continue
		}
		for _, p := range mesh.Primitives {
			out[p.RenderType]++
		}
	}
	return out
}

// UpdateNodeMatrices refreshes dirty nodes against the model matrix.
func (m *Model) UpdateNodeMatrices(frameCount int) int {
	return m.Nodes.Update(m.matrix, m.Meshes, frameCount)
}
