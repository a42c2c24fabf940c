package gpu

import (
	"fmt"

	"github.com/gekko3d/scenegeom/meshrt/rt/core"
)

// Resources is everything one rebuild allocates.
type Resources struct {
	Layout *Layout

	Combined    Buffer
	IndirectAll Buffer
	Constants   Buffer
	Storages    []Buffer
	Indirects   []Buffer

	Views *ImageViewTable
}

// Release frees every buffer. Safe on a partially built value.
func (r *Resources) Release() {
	if r == nil {
		return
	}
	releaseAll(r.Combined, r.IndirectAll, r.Constants)
	releaseAll(r.Storages...)
	releaseAll(r.Indirects...)
	r.Combined, r.IndirectAll, r.Constants = nil, nil, nil
	r.Storages, r.Indirects = nil, nil
}

// Builder commits a planned layout to the device.
type Builder struct {
	Device   Device
	Frames   int
	Defaults core.DefaultResources
}

// Upload releases prev, then allocates and fills the combined buffer, the
// indirect template, the constants buffer and one storage and indirect
// buffer per frame slot. Allocation errors are returned as is; whatever was
// created by this call is released again.
func (b *Builder) Upload(prev *Resources, layout *Layout, models []*core.Model) (*Resources, error) {
	if b.Frames < 1 {
		return nil, fmt.Errorf("builder needs at least one frame slot, got %d", b.Frames)
	}
	prev.Release()

	res := &Resources{Layout: layout}
	done := false
	defer func() {
		if !done {
			res.Release()
		}
	}()

	var err error
	if err = b.uploadCombined(res, layout, models); err != nil {
		return nil, err
	}

	count := uint64(max(len(layout.Template), 1))
	template := commandsBytes(layout.Template)
	res.IndirectAll, err = b.Device.CreateBuffer(BufferDesc{
		Label: "IndirectAll",
		Size:  count * DrawIndexedIndirectSize,
		Usage: UsageIndirect | UsageTransferSrc | UsageTransferDst,
	})
	if err != nil {
		return nil, err
	}
	if err = b.stage(res.IndirectAll, template, 0, StageDrawIndirect, AccessIndirectRead); err != nil {
		return nil, err
	}

	blocks := primitiveBlocks(layout, models)
	for f := 0; f < b.Frames; f++ {
		storage, err := b.Device.CreateBuffer(BufferDesc{
			Label:       fmt.Sprintf("Storage[%d]", f),
			Size:        layout.StorageSize,
			Usage:       UsageStorage,
			HostVisible: true,
		})
		if err != nil {
			return nil, err
		}
		res.Storages = append(res.Storages, storage)
		if err := writeMapped(storage, Range{Offset: layout.PrimitiveDataOffset, Data: blocks}); err != nil {
			return nil, err
		}

		indirect, err := b.Device.CreateBuffer(BufferDesc{
			Label:       fmt.Sprintf("Indirect[%d]", f),
			Size:        count * DrawIndexedIndirectSize,
			Usage:       UsageIndirect,
			HostVisible: true,
		})
		if err != nil {
			return nil, err
		}
		res.Indirects = append(res.Indirects, indirect)
	}

	res.Views = newImageViewTable(b.Frames)
	constants := buildConstants(layout, models, b.Defaults, res.Views)
	res.Constants, err = b.Device.CreateBuffer(BufferDesc{
		Label: "PrimitiveConstants",
		Size:  count * PrimitiveConstantsSize,
		Usage: UsageStorage | UsageTransferDst,
	})
	if err != nil {
		return nil, err
	}
	if err = b.stage(res.Constants, constants, 0, StageVertexShader|StageFragmentShader, AccessShaderRead); err != nil {
		return nil, err
	}

	done = true
	return res, nil
}

func (b *Builder) uploadCombined(res *Resources, l *Layout, models []*core.Model) error {
	var err error
	res.Combined, err = b.Device.CreateBuffer(BufferDesc{
		Label: "CombinedGeometry",
		Size:  l.CombinedSize,
		Usage: UsageIndex | UsageVertex | UsageTransferDst,
	})
	if err != nil {
		return err
	}

	var indices, vertices, positions, aabbs []byte
	for _, m := range models {
		indices = append(indices, core.IndicesBytes(m.Indices)...)
		vertices = append(vertices, core.VerticesBytes(m.Vertices)...)
		positions = append(positions, core.PositionUvsBytes(m.PositionUvs)...)
		aabbs = append(aabbs, core.AabbVerticesBytes(m.AabbVertices)...)
	}

	regions := []struct {
		data   []byte
		offset uint64
		stage  Stage
		access Access
	}{
		{indices, l.IndicesOffset, StageVertexInput, AccessIndexRead},
		{core.IndicesBytes(core.AabbLineIndices[:]), l.AabbIndicesOffset, StageVertexInput, AccessIndexRead},
		{vertices, l.VerticesOffset, StageVertexInput, AccessVertexAttributeRead},
		{positions, l.PositionsOffset, StageVertexInput, AccessVertexAttributeRead},
		{aabbs, l.AabbVerticesOffset, StageVertexInput, AccessVertexAttributeRead},
	}
	for _, r := range regions {
		if err := b.stage(res.Combined, r.data, r.offset, r.stage, r.access); err != nil {
			return err
		}
	}
	return nil
}

// stage copies data through the device and orders it before the consumer.
// Empty data is skipped entirely.
func (b *Builder) stage(dst Buffer, data []byte, offset uint64, stage Stage, access Access) error {
	if len(data) == 0 {
		return nil
	}
	if err := b.Device.CopyStaged(dst, data, offset); err != nil {
		return err
	}
	b.Device.Barrier(transferBarrier(dst, offset, uint64(len(data)), stage, access))
	return nil
}

// writeMapped maps buf, copies ranges, flushes and unmaps on every path.
func writeMapped(buf Buffer, ranges ...Range) error {
	if err := buf.Map(); err != nil {
		return err
	}
	defer buf.Unmap()
	if err := buf.Copy(ranges...); err != nil {
		return err
	}
	return buf.Flush()
}
