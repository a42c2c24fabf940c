package cull

import (
	"runtime"
	"testing"
	"time"

	"github.com/gekko3d/scenegeom/meshrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = mgl32.Vec4{1, 1, 1, 1}

type fixedCamera struct {
	pos     mgl32.Vec3
	visible func(core.AABB) bool
}

func (c fixedCamera) ViewProjection() mgl32.Mat4         { return mgl32.Ident4() }
func (c fixedCamera) PreviousViewProjection() mgl32.Mat4 { return mgl32.Ident4() }
func (c fixedCamera) Position() mgl32.Vec3               { return c.pos }

func (c fixedCamera) AABBInFrustum(b core.AABB) bool {
	if c.visible == nil {
		return true
	}
	return c.visible(b)
}

// panicCamera fails the frustum test of any box whose center lies past x.
type panicCamera struct {
	fixedCamera
	x float32
}

func (c panicCamera) AABBInFrustum(b core.AABB) bool {
	if b.Center().X() > c.x {
		panic("frustum test failed")
	}
	return true
}

func newPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p := NewPool(workers)
	t.Cleanup(p.Close)
	return p
}

func field(t *testing.T, xs []float32, types ...core.RenderType) *core.Model {
	t.Helper()
	centers := make([]mgl32.Vec3, len(xs))
	for i, x := range xs {
		centers[i] = mgl32.Vec3{x, 0, 0}
	}
	m, err := core.NewCubeField("field", centers, types, white)
	require.NoError(t, err)
	m.UpdateNodeMatrices(1)
	return m
}

func distances(list []DrawInfo) []float32 {
	out := make([]float32, len(list))
	for i, d := range list {
		out[i] = d.Distance
	}
	return out
}

func TestCullOpaqueFrontToBack(t *testing.T) {
	m := field(t, []float32{10, 3, 7, 1, 9}, core.RenderOpaque)
	var lists DrawLists
	_, err := NewScheduler(newPool(t, 2), Options{CullsPerTask: 2, FanoutDepth: 2}).Cull([]*core.Model{m}, fixedCamera{}, &lists)
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 9, 49, 81, 100}, distances(lists.Opaque()))
	prims := make([]int, 0, 5)
	for _, d := range lists.Opaque() {
		prims = append(prims, d.Primitive)
	}
	assert.Equal(t, []int{3, 1, 2, 4, 0}, prims)
}

func TestCullAlphaBackToFront(t *testing.T) {
	m := field(t, []float32{10, 3, 7, 1, 9, 2, 8},
		core.RenderAlphaCut, core.RenderAlphaBlend)
	var lists DrawLists
	_, err := NewScheduler(nil, Options{CullsPerTask: 3, FanoutDepth: 1}).Cull([]*core.Model{m}, fixedCamera{}, &lists)
	require.NoError(t, err)

	assert.Equal(t, []float32{100, 81, 64, 49}, distances(lists.AlphaCut()))
	assert.Equal(t, []float32{9, 4, 1}, distances(lists.AlphaBlend()))
	assert.Empty(t, lists.Opaque())
}

func TestCullPartitionAndFrustum(t *testing.T) {
	m := field(t, []float32{-5, -3, 1, 3, 5, 7},
		core.RenderOpaque, core.RenderAlphaCut, core.RenderAlphaBlend)
	cam := fixedCamera{visible: func(b core.AABB) bool { return b.Center().X() > 0 }}
	var lists DrawLists
	stats, err := NewScheduler(newPool(t, 1), Options{CullsPerTask: 1, FanoutDepth: 2}).Cull([]*core.Model{m}, cam, &lists)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Tested)
	assert.Equal(t, 4, stats.Visible)
	assert.Equal(t, 6, stats.Tasks)
	seen := map[int]bool{}
	for b := range lists.Buckets {
		for _, d := range lists.Buckets[b] {
			assert.False(t, seen[d.Primitive], "primitive %d listed twice", d.Primitive)
			seen[d.Primitive] = true
			assert.Equal(t, core.RenderType(b), m.Primitive(d.Node, d.Primitive).RenderType)
		}
	}
	assert.Len(t, seen, 4)
}

func TestCullDisabledKeepsEverything(t *testing.T) {
	m := field(t, []float32{1, 2, 3}, core.RenderOpaque)
	cam := fixedCamera{visible: func(core.AABB) bool { return false }}
	var lists DrawLists
	_, err := NewScheduler(nil, Options{Disabled: true, CullsPerTask: 20, FanoutDepth: 2}).Cull([]*core.Model{m}, cam, &lists)
	require.NoError(t, err)
	assert.Equal(t, 3, lists.Len())
}

func TestCullSkipsNotReadyAndEmptyPrimitives(t *testing.T) {
	ready := field(t, []float32{1, 2}, core.RenderOpaque)
	ready.Meshes[0].Primitives[1].IndicesCount = 0
	hidden := field(t, []float32{3}, core.RenderOpaque)
	hidden.SetRenderReady(false)

	var lists DrawLists
	_, err := NewScheduler(nil, Options{CullsPerTask: 20, FanoutDepth: 2}).Cull([]*core.Model{ready, hidden}, fixedCamera{}, &lists)
	require.NoError(t, err)
	require.Len(t, lists.Opaque(), 1)
	assert.Equal(t, 0, lists.Opaque()[0].Model)
	assert.Equal(t, 0, lists.Opaque()[0].Primitive)
}

func deepModel(t *testing.T, depth int) *core.Model {
	t.Helper()
	cube, err := core.NewCube("cube", core.RenderOpaque, white)
	require.NoError(t, err)
	nodes := make([]core.NodeDesc, depth)
	for i := range nodes {
		nodes[i] = core.NodeDesc{Parent: i - 1, Mesh: 0, Local: mgl32.Translate3D(1, 0, 0)}
	}
	m, err := core.NewModel(core.ModelData{Label: "chain", Vertices: cube.Vertices, Indices: cube.Indices, Meshes: cube.Meshes, Nodes: nodes})
	require.NoError(t, err)
	m.SetRenderReady(true)
	m.UpdateNodeMatrices(1)
	return m
}

func TestCullLeafTaskCoversSubtree(t *testing.T) {
	m := deepModel(t, 6)
	var lists DrawLists
	stats, err := NewScheduler(newPool(t, 1), Options{CullsPerTask: 20, FanoutDepth: 2}).Cull([]*core.Model{m}, fixedCamera{}, &lists)
	require.NoError(t, err)

	// Depth 0 and 1 get a batch each, depth 2 takes the remaining four nodes.
	assert.Equal(t, 3, stats.Tasks)
	assert.Equal(t, 6, lists.Len())
	assert.Equal(t, []float32{1, 4, 9, 16, 25, 36}, distances(lists.Opaque()))
}

func TestCullIdempotent(t *testing.T) {
	m := field(t, []float32{4, 4, 2, 4, 1}, core.RenderOpaque, core.RenderAlphaBlend)
	s := NewScheduler(newPool(t, 3), Options{CullsPerTask: 1, FanoutDepth: 2})

	var first, second DrawLists
	_, err := s.Cull([]*core.Model{m}, fixedCamera{}, &first)
	require.NoError(t, err)
	_, err = s.Cull([]*core.Model{m}, fixedCamera{}, &second)
	require.NoError(t, err)
	assert.Equal(t, first.Buckets, second.Buckets)
}

func TestDrawListsReserve(t *testing.T) {
	m := field(t, []float32{1, 2, 3}, core.RenderOpaque, core.RenderAlphaBlend)
	var lists DrawLists
	lists.Append(core.RenderAlphaCut, DrawInfo{})
	lists.Reserve([]*core.Model{m})
	assert.Equal(t, 0, lists.Len())
	assert.GreaterOrEqual(t, cap(lists.Opaque()), 2)
	assert.GreaterOrEqual(t, cap(lists.AlphaBlend()), 1)
}

func TestEnqueueInline(t *testing.T) {
	task := Enqueue(nil, func() (int, error) { return 7, nil })
	v, err := task.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestEnqueueRecoversPanic(t *testing.T) {
	task := Enqueue(newPool(t, 1), func() (int, error) { panic("boom") })
	_, err := task.Get()
	assert.ErrorContains(t, err, "boom")
}

func TestEnqueueSingleWorker(t *testing.T) {
	p := newPool(t, 1)
	tasks := make([]*Task[int], 100)
	for i := range tasks {
		tasks[i] = Enqueue(p, func() (int, error) { return i * i, nil })
	}
	for i, task := range tasks {
		v, err := task.Get()
		require.NoError(t, err)
		assert.Equal(t, i*i, v)
	}
}

func TestCullReportsTaskPanic(t *testing.T) {
	m := field(t, []float32{1, 2, 3, 4}, core.RenderOpaque)
	var lists DrawLists
	stats, err := NewScheduler(newPool(t, 2), Options{CullsPerTask: 1, FanoutDepth: 2}).
		Cull([]*core.Model{m}, panicCamera{x: 2.5}, &lists)

	require.Error(t, err)
	assert.ErrorContains(t, err, "panicked")
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, []float32{1, 4}, distances(lists.Opaque()))
}

func TestCullReportsTaskPanicInline(t *testing.T) {
	m := field(t, []float32{1, 2}, core.RenderOpaque)
	var lists DrawLists
	_, err := NewScheduler(nil, Options{CullsPerTask: 20, FanoutDepth: 2}).
		Cull([]*core.Model{m}, panicCamera{x: 0}, &lists)
	assert.ErrorContains(t, err, "panicked")
	assert.Equal(t, 0, lists.Len())
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(2)
	v, err := Enqueue(p, func() (int, error) { return 3, nil }).Get()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, p.Workers())

	assert.NotPanics(t, p.Close)
	assert.NotPanics(t, p.Close)

	v, err = Enqueue(p, func() (int, error) { return 4, nil }).Get()
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	var nilPool *Pool
	assert.NotPanics(t, nilPool.Close)
	assert.Equal(t, 0, nilPool.Workers())
}

func TestPoolCloseStopsWorkers(t *testing.T) {
	before := runtime.NumGoroutine()
	for range 5 {
		p := NewPool(4)
		tasks := make([]*Task[int], 16)
		for i := range tasks {
			tasks[i] = Enqueue(p, func() (int, error) { return i, nil })
		}
		for _, task := range tasks {
			_, err := task.Get()
			require.NoError(t, err)
		}
		p.Close()
	}
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)
}
