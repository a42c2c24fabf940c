package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestTRSMatrix(t *testing.T) {
	trs := TRS{
		Translation: mgl32.Vec3{3, -2, 5},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 0, 1}),
		Scale:       mgl32.Vec3{2, 2, 2},
	}
	p := trs.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 3+2*0.8660254, p.X(), 1e-5)
	assert.InDelta(t, -2+2*0.5, p.Y(), 1e-5)
}

func TestIdentityTRS(t *testing.T) {
	assert.True(t, IdentityTRS().Matrix().ApproxEqual(mgl32.Ident4()))
}

func TestPackRGBA8(t *testing.T) {
	assert.Equal(t, uint32(0xff0000ff), PackRGBA8(mgl32.Vec4{1, 0, 0, 1}))
	assert.Equal(t, uint32(0x00ffff00), PackRGBA8(mgl32.Vec4{0, 1, 2, -1}))
	buf := (AabbVertex{Position: mgl32.Vec3{1, 2, 3}, Color: 7}).AppendBytes(nil)
	assert.Len(t, buf, AabbVertexSize)
	assert.Len(t, (Vertex{}).AppendBytes(nil), VertexSize)
	assert.Len(t, (PositionUvVertex{}).AppendBytes(nil), PositionUvVertexSize)
	assert.Len(t, IndicesBytes([]uint32{1, 2, 3}), 12)
}
