package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Byte sizes of the packed vertex layouts the draw shaders read.
const (
	VertexSize           = 48 // position(12) uv(8) normal(12) color(16)
	PositionUvVertexSize = 20 // position(12) uv(8)
	AabbVertexSize       = 16 // position(12) rgba8(4)
)

type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
	Normal   mgl32.Vec3
	Color    mgl32.Vec4
}

// PositionUvVertex is the reduced stream used by depth and shadow passes.
type PositionUvVertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
}

type AabbVertex struct {
	Position mgl32.Vec3
	Color    uint32 // packed RGBA8, R in the low byte
}

func (v Vertex) AppendBytes(buf []byte) []byte {
	buf = appendFloats(buf, v.Position[:]...)
	buf = appendFloats(buf, v.UV[:]...)
	buf = appendFloats(buf, v.Normal[:]...)
	return appendFloats(buf, v.Color[:]...)
}

func (v PositionUvVertex) AppendBytes(buf []byte) []byte {
	buf = appendFloats(buf, v.Position[:]...)
	return appendFloats(buf, v.UV[:]...)
}

func (v AabbVertex) AppendBytes(buf []byte) []byte {
	buf = appendFloats(buf, v.Position[:]...)
	return binary.LittleEndian.AppendUint32(buf, v.Color)
}

// PackRGBA8 packs a linear 0..1 color into the AabbVertex color layout.
func PackRGBA8(c mgl32.Vec4) uint32 {
	var out uint32
	for i := 0; i < 4; i++ {
		f := mgl32.Clamp(c[i], 0, 1)
		out |= uint32(f*255+0.5) << (8 * i)
	}
	return out
}

func appendFloats(buf []byte, fs ...float32) []byte {
	for _, f := range fs {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// VerticesBytes packs a vertex slice.
func VerticesBytes(vs []Vertex) []byte {
	buf := make([]byte, 0, len(vs)*VertexSize)
	for _, v := range vs {
		buf = v.AppendBytes(buf)
	}
	return buf
}

func PositionUvsBytes(vs []PositionUvVertex) []byte {
	buf := make([]byte, 0, len(vs)*PositionUvVertexSize)
	for _, v := range vs {
		buf = v.AppendBytes(buf)
	}
	return buf
}

func AabbVerticesBytes(vs []AabbVertex) []byte {
	buf := make([]byte, 0, len(vs)*AabbVertexSize)
	for _, v := range vs {
		buf = v.AppendBytes(buf)
	}
	return buf
}

func IndicesBytes(is []uint32) []byte {
	buf := make([]byte, 0, len(is)*4)
	for _, i := range is {
		buf = binary.LittleEndian.AppendUint32(buf, i)
	}
	return buf
}
