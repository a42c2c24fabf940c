package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

var cubeFaces = [6]struct {
	normal mgl32.Vec3
	u, v   mgl32.Vec3
}{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}},
}

// appendCube appends a cube of half extent h around center as a primitive.
func appendCube(data *ModelData, center mgl32.Vec3, h float32, rt RenderType, color mgl32.Vec4) PrimitiveInfo {
	firstVertex := uint32(len(data.Vertices))
	firstIndex := uint32(len(data.Indices))
	for _, f := range cubeFaces {
		base := uint32(len(data.Vertices)) - firstVertex
		corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		for _, c := range corners {
			p := center.Add(f.normal.Mul(h)).Add(f.u.Mul(c[0] * h)).Add(f.v.Mul(c[1] * h))
			data.Vertices = append(data.Vertices, Vertex{
				Position: p,
				UV:       mgl32.Vec2{(c[0] + 1) / 2, (c[1] + 1) / 2},
				Normal:   f.normal,
				Color:    color,
			})
		}
		data.Indices = append(data.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	ext := mgl32.Vec3{h, h, h}
	factors := mgl32.Ident4()
	factors.SetCol(0, color)
	return PrimitiveInfo{
		IndexOffset:     firstIndex,
		IndicesCount:    uint32(len(data.Indices)) - firstIndex,
		VertexOffset:    firstVertex,
		VerticesCount:   uint32(len(data.Vertices)) - firstVertex,
		BoundingBox:     AABB{Min: center.Sub(ext), Max: center.Add(ext)},
		RenderType:      rt,
		AlphaCutoff:     0.5,
		MaterialFactors: factors,
	}
}

// NewCube builds a render-ready single-node unit cube.
func NewCube(label string, rt RenderType, color mgl32.Vec4) (*Model, error) {
	return NewCubeField(label, []mgl32.Vec3{{0, 0, 0}}, []RenderType{rt}, color)
}

// NewCubeField builds one node whose mesh has a unit cube primitive per
// center. types is indexed modulo its length.
func NewCubeField(label string, centers []mgl32.Vec3, types []RenderType, color mgl32.Vec4) (*Model, error) {
	data := ModelData{Label: label}
	mesh := MeshInfo{Name: label}
	for i, c := range centers {
		rt := RenderOpaque
		if len(types) > 0 {
			rt = types[i%len(types)]
		}
		mesh.Primitives = append(mesh.Primitives, appendCube(&data, c, 0.5, rt, color))
	}
	data.Meshes = []MeshInfo{mesh}
	data.Nodes = []NodeDesc{{Name: label, Parent: -1, Mesh: 0, Local: mgl32.Ident4()}}

	m, err := NewModel(data)
	if err != nil {
		return nil, err
	}
	m.SetRenderReady(true)
	return m, nil
}

// NewQuad builds a render-ready single-node quad in the XY plane.
func NewQuad(label string, rt RenderType, size float32, color mgl32.Vec4) (*Model, error) {
	h := size / 2
	data := ModelData{Label: label}
	for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
		data.Vertices = append(data.Vertices, Vertex{
			Position: mgl32.Vec3{c[0] * h, c[1] * h, 0},
			UV:       mgl32.Vec2{(c[0] + 1) / 2, (c[1] + 1) / 2},
			Normal:   mgl32.Vec3{0, 0, 1},
			Color:    color,
		})
	}
	data.Indices = []uint32{0, 1, 2, 0, 2, 3}
	data.Meshes = []MeshInfo{{
		Name: label,
		Primitives: []PrimitiveInfo{{
			IndicesCount:    6,
			VerticesCount:   4,
			BoundingBox:     AABB{Min: mgl32.Vec3{-h, -h, 0}, Max: mgl32.Vec3{h, h, 0}},
			RenderType:      rt,
			AlphaCutoff:     0.5,
			MaterialFactors: mgl32.Ident4(),
		}},
	}}
	data.Nodes = []NodeDesc{{Name: label, Parent: -1, Mesh: 0, Local: mgl32.Ident4()}}

	m, err := NewModel(data)
	if err != nil {
		return nil, err
	}
	m.SetRenderReady(true)
	return m, nil
}
