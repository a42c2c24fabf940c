// Package scenegeom prepares scene geometry for GPU-driven drawing: it packs
// every registered model into one combined buffer, culls primitives against
// the camera each frame and writes per-frame indirect draw data.
package scenegeom

import (
	"errors"
	"fmt"

	"github.com/gekko3d/scenegeom/meshrt/rt/core"
	"github.com/gekko3d/scenegeom/meshrt/rt/cull"
	"github.com/gekko3d/scenegeom/meshrt/rt/gpu"
	"github.com/google/uuid"
)

var (
	ErrNotUploaded = errors.New("geometry buffers not uploaded")
	ErrNoFrames    = errors.New("at least one frame slot required")
)

// FrameContext is what the frame loop tells the geometry about the current
// swapchain image.
type FrameContext interface {
	FrameIndex() uint32
	SwapchainImageCount() uint32
}

type Geometry struct {
	device   gpu.Device
	settings *Settings
	log      Logger

	registry  *core.Registry
	scheduler *cull.Scheduler
	plan      func([]*core.Model) (*gpu.Layout, error)

	// State of the last successful upload.
	models   []*core.Model
	res      *gpu.Resources
	store    *gpu.FrameStore
	version  uint64
	uploaded bool

	lists cull.DrawLists
	stats cull.Stats
}

func NewGeometry(device gpu.Device, settings *Settings, log Logger) (*Geometry, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = NewNopLogger()
	}
	pool := cull.NewPool(settings.Culling.Workers)
	opts := settings.CullOptions()
	log.Infof("culling: %d workers, %d primitives per task, fanout depth %d, disabled %t",
		pool.Workers(), opts.CullsPerTask, opts.FanoutDepth, opts.Disabled)
	return &Geometry{
		device:    device,
		settings:  settings,
		log:       log,
		registry:  core.NewRegistry(),
		scheduler: cull.NewScheduler(pool, opts),
		plan:      gpu.PlanLayout,
	}, nil
}

func (g *Geometry) Registry() *core.Registry { return g.registry }

// AddModel registers m. The combined buffer is rebuilt on the next upload.
func (g *Geometry) AddModel(m *core.Model) error {
	if err := g.registry.Add(m); err != nil {
		return err
	}
	g.log.Infof("model %q added (%d primitives)", m.Label, m.PrimitiveCount())
	return nil
}

func (g *Geometry) RemoveModel(id uuid.UUID) bool {
	m := g.registry.Get(id)
	if m == nil {
		return false
	}
	g.registry.Remove(id)
	g.log.Infof("model %q removed", m.Label)
	return true
}

// NeedsUpload reports whether the registry changed since the last upload.
func (g *Geometry) NeedsUpload() bool {
	return !g.uploaded || g.version != g.registry.Version()
}

// UploadBuffers rebuilds every buffer from the registry. The frame count
// check and planning run before anything is released, so either error keeps
// the previous buffers. Once the commit starts a failure leaves the geometry
// not uploaded.
func (g *Geometry) UploadBuffers(frames int) error {
	if frames < 1 {
		err := fmt.Errorf("%w, got %d", ErrNoFrames, frames)
		g.log.Errorf("geometry rebuild aborted: %v", err)
		return err
	}
	models := g.registry.Models()
	version := g.registry.Version()

	layout, err := g.plan(models)
	if err != nil {
		g.log.Errorf("geometry rebuild aborted: %v", err)
		return err
	}
	defaults, err := core.Defaults()
	if err != nil {
		return fmt.Errorf("default resources: %w", err)
	}

	builder := &gpu.Builder{Device: g.device, Frames: frames, Defaults: defaults}
	res, err := builder.Upload(g.res, layout, models)
	if err != nil {
		g.res, g.store, g.models, g.uploaded = nil, nil, nil, false
		g.log.Errorf("geometry upload failed: %v", err)
		return err
	}

	g.res = res
	g.store = gpu.NewFrameStore(res)
	g.models = models
	g.version = version
	g.uploaded = true
	g.lists.Reserve(models)
	g.log.Infof("geometry uploaded: %d models, %d primitives, %d indices, %d vertices, %d frame slots, %d bytes combined",
		len(models), layout.PrimitivesCount(), layout.IndicesCount, layout.VerticesCount, frames, layout.CombinedSize)
	return nil
}

// UpdateGeometry runs one frame: refresh node matrices, cull, sort and write
// the frame slot. A changed registry or swapchain size triggers a rebuild
// first.
func (g *Geometry) UpdateGeometry(ctx FrameContext, cam core.Camera) error {
	if !g.uploaded {
		return ErrNotUploaded
	}
	frames := int(ctx.SwapchainImageCount())
	if g.version != g.registry.Version() || frames != len(g.res.Storages) {
		if err := g.UploadBuffers(frames); err != nil {
			return err
		}
	}
	frame := int(ctx.FrameIndex())
	if frame >= frames {
		panic(fmt.Sprintf("frame index %d out of %d swapchain images", frame, frames))
	}

	updated := 0
	for _, m := range g.models {
		updated += m.UpdateNodeMatrices(frames)
	}
	stats, err := g.scheduler.Cull(g.models, cam, &g.lists)
	g.stats = stats
	if err != nil {
		g.log.Errorf("frame %d: %v", frame, err)
		return err
	}
	if err := g.store.Write(frame, cam, g.models, &g.lists); err != nil {
		g.log.Errorf("frame %d: %v", frame, err)
		return err
	}
	if g.log.DebugEnabled() {
		g.log.Debugf("frame %d: %d nodes updated, %d tasks, %d/%d visible (opaque %d, cut %d, blend %d)",
			frame, updated, g.stats.Tasks, g.stats.Visible, g.stats.Tested,
			g.lists.Count(core.RenderOpaque), g.lists.Count(core.RenderAlphaCut), g.lists.Count(core.RenderAlphaBlend))
	}
	return nil
}

// DrawLists exposes the sorted lists of the last frame.
func (g *Geometry) DrawLists() *cull.DrawLists { return &g.lists }
func (g *Geometry) Stats() cull.Stats          { return g.stats }

// Close releases every buffer and stops the cull workers. The geometry must
// not be used afterwards.
func (g *Geometry) Close() {
	g.scheduler.Pool.Close()
	g.res.Release()
	g.res, g.store, g.models, g.uploaded = nil, nil, nil, false
}

func (g *Geometry) layout() *gpu.Layout {
	if g.res == nil {
		return nil
	}
	return g.res.Layout
}

// Buffer is the combined index and vertex buffer.
func (g *Geometry) Buffer() gpu.Buffer {
	if g.res == nil {
		return nil
	}
	return g.res.Combined
}

func (g *Geometry) VerticesOffset() uint64 {
	if l := g.layout(); l != nil {
		return l.VerticesOffset
	}
	return 0
}

func (g *Geometry) PositionsOffset() uint64 {
	if l := g.layout(); l != nil {
		return l.PositionsOffset
	}
	return 0
}

func (g *Geometry) AabbIndicesOffset() uint64 {
	if l := g.layout(); l != nil {
		return l.AabbIndicesOffset
	}
	return 0
}

func (g *Geometry) AabbVerticesOffset() uint64 {
	if l := g.layout(); l != nil {
		return l.AabbVerticesOffset
	}
	return 0
}

func (g *Geometry) Indirect(frame int) gpu.Buffer { return g.res.Indirects[frame] }
func (g *Geometry) Storage(frame int) gpu.Buffer  { return g.res.Storages[frame] }

func (g *Geometry) IndirectAll() gpu.Buffer {
	if g.res == nil {
		return nil
	}
	return g.res.IndirectAll
}

func (g *Geometry) Constants() gpu.Buffer {
	if g.res == nil {
		return nil
	}
	return g.res.Constants
}

func (g *Geometry) DrawCount(rt core.RenderType) uint32 {
	if g.store == nil {
		return 0
	}
	return g.store.DrawCount(rt)
}

func (g *Geometry) IndirectOffset(rt core.RenderType) uint64 {
	if g.store == nil {
		return 0
	}
	return g.store.IndirectOffset(rt)
}

func (g *Geometry) HasAnyVisibleDraws() bool {
	return g.store != nil && g.store.HasAnyVisibleDraws()
}

func (g *Geometry) HasOpaqueDrawInfo() bool {
	return g.DrawCount(core.RenderOpaque) > 0
}

func (g *Geometry) HasAlphaDrawInfo() bool {
	return g.DrawCount(core.RenderAlphaCut) > 0 || g.DrawCount(core.RenderAlphaBlend) > 0
}

func (g *Geometry) ImageViews() []core.TextureID {
	if g.res == nil {
		return nil
	}
	return g.res.Views.Views
}

func (g *Geometry) HasDirtyDescriptorViews(frame int) bool {
	return g.res != nil && g.res.Views.Dirty(frame)
}

func (g *Geometry) ClearDirtyDescriptorViews(frame int) {
	if g.res != nil {
		g.res.Views.ClearDirty(frame)
	}
}

func (g *Geometry) PrimitivesCount() int {
	if l := g.layout(); l != nil {
		return l.PrimitivesCount()
	}
	return 0
}
