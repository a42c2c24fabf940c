package cull

import (
	"fmt"

	"github.com/gekko3d/scenegeom/meshrt/rt/core"
)

const (
	DefaultCullsPerTask = 20
	DefaultFanoutDepth  = 2
)

type Options struct {
	// Disabled marks every primitive visible.
	Disabled bool
	// CullsPerTask is how many primitives of one node a batch task tests.
	CullsPerTask int
	// FanoutDepth is the node depth at which a single task takes the whole
	// subtree.
	FanoutDepth int
}

// Stats describes the last pass.
type Stats struct {
	Tasks   int
	Tested  int
	Visible int
	Failed  int
}

type bucketLists [core.RenderTypeCount][]DrawInfo

type taskResult struct {
	lists  bucketLists
	tested int
}

// Scheduler runs the visibility pass. Only the goroutine calling Cull
// submits tasks; tasks never submit.
type Scheduler struct {
	Pool    *Pool
	Options Options

	tasks []*Task[taskResult]
}

func NewScheduler(pool *Pool, opts Options) *Scheduler {
	return &Scheduler{Pool: pool, Options: opts}
}

// Cull fills lists with the visible primitives of every render-ready model
// and sorts them. Node matrices must already be up to date. Every task is
// joined; the first task error is returned and the lists then miss that
// task's primitives.
func (s *Scheduler) Cull(models []*core.Model, cam core.Camera, lists *DrawLists) (Stats, error) {
	lists.Reserve(models)
	s.tasks = s.tasks[:0]

	for mi, m := range models {
		if !m.IsRenderReady() {
			continue
		}
		for _, root := range m.Nodes.Roots() {
			s.visit(mi, m, root, 0, cam)
		}
	}

	stats := Stats{Tasks: len(s.tasks)}
	var firstErr error
	for i, t := range s.tasks {
		res, err := t.Get()
		if err != nil {
			stats.Failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("cull task %d: %w", i, err)
			}
			continue
		}
		stats.Tested += res.tested
		for b := range res.lists {
			lists.Buckets[b] = append(lists.Buckets[b], res.lists[b]...)
		}
	}
	lists.Sort()
	stats.Visible = lists.Len()
	return stats, firstErr
}

func (s *Scheduler) visit(mi int, m *core.Model, node, depth int, cam core.Camera) {
	if depth >= s.Options.FanoutDepth {
		s.tasks = append(s.tasks, Enqueue(s.Pool, func() (taskResult, error) {
			var res taskResult
			s.cullSubtree(&res, mi, m, node, cam)
			return res, nil
		}))
		return
	}

	if mesh := m.NodeMesh(node); mesh != nil {
		per := max(s.Options.CullsPerTask, 1)
		for start := 0; start < len(mesh.Primitives); start += per {
			end := min(start+per, len(mesh.Primitives))
			s.tasks = append(s.tasks, Enqueue(s.Pool, func() (taskResult, error) {
				var res taskResult
				s.cullRange(&res, mi, m, node, start, end, cam)
				return res, nil
			}))
		}
	}
	for _, child := range m.Nodes.Children(node) {
		s.visit(mi, m, child, depth+1, cam)
	}
}

// cullSubtree tests node and every descendant inline.
func (s *Scheduler) cullSubtree(res *taskResult, mi int, m *core.Model, root int, cam core.Camera) {
	stack := []int{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if mesh := m.NodeMesh(node); mesh != nil {
			s.cullRange(res, mi, m, node, 0, len(mesh.Primitives), cam)
		}
		children := m.Nodes.Children(node)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

func (s *Scheduler) cullRange(res *taskResult, mi int, m *core.Model, node, start, end int, cam core.Camera) {
	info := m.Nodes.Node(node)
	mesh := m.NodeMesh(node)
	for p := start; p < end; p++ {
		prim := &mesh.Primitives[p]
		if prim.IndicesCount == 0 || p >= len(info.WorldBoxes) {
			continue
		}
		res.tested++
		box := info.WorldBoxes[p]
		if !s.Options.Disabled && (cam == nil || !cam.AABBInFrustum(box)) {
			continue
		}
		var dist float32
		if cam != nil {
			dist = box.DistanceSq(cam.Position())
		}
		res.lists[prim.RenderType] = append(res.lists[prim.RenderType], DrawInfo{
			Model:     mi,
			Node:      node,
			Primitive: p,
			Distance:  dist,
		})
	}
}
