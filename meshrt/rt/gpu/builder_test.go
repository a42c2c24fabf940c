package gpu

import (
	"testing"

	"github.com/gekko3d/scenegeom/meshrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(t *testing.T, dev *HostDevice, frames int, prev *Resources, models []*core.Model) *Resources {
	t.Helper()
	l, err := PlanLayout(models)
	require.NoError(t, err)
	b := &Builder{Device: dev, Frames: frames, Defaults: testDefaults}
	res, err := b.Upload(prev, l, models)
	require.NoError(t, err)
	return res
}

var testDefaults = core.DefaultResources{
	Black:   core.NewTextureID(),
	Normal:  core.NewTextureID(),
	White:   core.NewTextureID(),
	Sampler: core.NewSamplerID(),
}

func TestBuilderUploadSequence(t *testing.T) {
	dev := NewHostDevice()
	models := testModels(t)
	res := upload(t, dev, 2, nil, models)
	l := res.Layout

	copies := dev.StagedCopies()
	require.Len(t, copies, 7)
	wantOffsets := []uint64{l.IndicesOffset, l.AabbIndicesOffset, l.VerticesOffset, l.PositionsOffset, l.AabbVerticesOffset}
	for i, off := range wantOffsets {
		assert.Equal(t, "CombinedGeometry", copies[i].Label)
		assert.Equal(t, off, copies[i].Offset)
	}
	assert.Equal(t, "IndirectAll", copies[5].Label)
	assert.Equal(t, "PrimitiveConstants", copies[6].Label)

	barriers := dev.Barriers()
	require.Len(t, barriers, 7)
	assert.Equal(t, AccessIndexRead, barriers[0].DstAccess)
	assert.Equal(t, AccessIndexRead, barriers[1].DstAccess)
	assert.Equal(t, AccessVertexAttributeRead, barriers[2].DstAccess)
	assert.Equal(t, AccessIndirectRead, barriers[5].DstAccess)
	assert.Equal(t, StageDrawIndirect, barriers[5].DstStage)
	for _, b := range barriers {
		assert.Equal(t, AccessTransferWrite, b.SrcAccess)
		assert.Equal(t, StageTransfer, b.SrcStage)
	}

	combined := res.Combined.(*HostBuffer).Bytes()
	for i, idx := range core.AabbLineIndices {
		assert.Equal(t, idx, ReadUint32(combined, l.AabbIndicesOffset+uint64(i)*4))
	}
	// Indices stay model-relative; the draw adds vertexOffset.
	assert.Equal(t, models[1].Indices[0], ReadUint32(combined, uint64(l.Entries[1].FirstIndex)*4))

	all := res.IndirectAll.(*HostBuffer).Bytes()
	for i, cmd := range l.Template {
		assert.Equal(t, cmd, DecodeDrawIndexedIndirect(all, uint64(i)*DrawIndexedIndirectSize))
	}

	require.Len(t, res.Storages, 2)
	require.Len(t, res.Indirects, 2)
	for _, s := range res.Storages {
		hb := s.(*HostBuffer)
		assert.Equal(t, 1, hb.Writes())
		assert.False(t, hb.Mapped())
		assert.Equal(t, models[0].Meshes[0].Primitives[0].MaterialFactors, ReadMat4(hb.Bytes(), l.PrimitiveDataOffset))
	}
	assert.Equal(t, 3+2*2, dev.LiveBuffers())
}

func TestBuilderImageViews(t *testing.T) {
	dev := NewHostDevice()
	models := testModels(t)
	tex := core.NewTextureID()
	models[1].Meshes[0].Primitives[2].Images[core.TextureBaseColor] = tex

	res := upload(t, dev, 3, nil, models)
	assert.ElementsMatch(t, []core.TextureID{testDefaults.White, testDefaults.Normal, testDefaults.Black, tex}, res.Views.Views)
	for f := 0; f < 3; f++ {
		assert.True(t, res.Views.Dirty(f))
	}
	res.Views.ClearDirty(1)
	assert.False(t, res.Views.Dirty(1))

	consts := res.Constants.(*HostBuffer).Bytes()
	rec := uint64(3) * PrimitiveConstantsSize
	e := res.Layout.Entries[3]
	assert.Equal(t, uint32(e.MeshDataOffset), ReadUint32(consts, rec+4))
	assert.Equal(t, uint32(e.PrimitiveDataOffset), ReadUint32(consts, rec+8))
	view, ok := res.Views.ViewIndex(tex)
	require.True(t, ok)
	assert.Equal(t, view, ReadUint32(consts, rec+16))
	normal, _ := res.Views.ViewIndex(testDefaults.Normal)
	assert.Equal(t, normal, ReadUint32(consts, rec+20))
	assert.Equal(t, uint32(core.RenderAlphaBlend), ReadUint32(consts, rec+36))
}

func TestBuilderRebuildReleasesPrevious(t *testing.T) {
	dev := NewHostDevice()
	models := testModels(t)
	first := upload(t, dev, 2, nil, models[:1])
	live := dev.LiveBuffers()

	second := upload(t, dev, 2, first, models)
	assert.Equal(t, live, dev.LiveBuffers())
	assert.Nil(t, first.Combined)
	assert.Equal(t, 4, second.Layout.PrimitivesCount())
}

func TestBuilderAllocationFailure(t *testing.T) {
	dev := NewHostDevice()
	models := testModels(t)
	prev := upload(t, dev, 2, nil, models[:1])

	dev.Budget = 1024
	l, err := PlanLayout(models)
	require.NoError(t, err)
	b := &Builder{Device: dev, Frames: 2}
	res, err := b.Upload(prev, l, models)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Nil(t, res)
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Equal(t, uint64(0), dev.Allocated())
}

func TestBuilderEmptyScene(t *testing.T) {
	dev := NewHostDevice()
	res := upload(t, dev, 2, nil, nil)
	assert.Equal(t, 0, res.Layout.PrimitivesCount())
	// Only the debug box indices are uploaded.
	require.Len(t, dev.StagedCopies(), 1)
	assert.Equal(t, uint64(DrawIndexedIndirectSize), res.IndirectAll.Size())
}
