package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// NodeInfo is one entry of a model's node arena. Nodes reference each other
// by index only.
type NodeInfo struct {
	Name   string
	Parent int
	Mesh   int

	Local         mgl32.Mat4
	World         mgl32.Mat4
	PreviousWorld mgl32.Mat4

	// Dirty means World and WorldBoxes are stale.
	Dirty bool
	// DirtyUniforms[f] means frame slot f still holds an old copy of this
	// node's uniform block.
	DirtyUniforms []bool
	// WorldBoxes caches the world bounds of each primitive of Mesh. Valid
	// only while Dirty is false.
	WorldBoxes []AABB

	syncPrevious bool
	initialized  bool
}

type NodeTable struct {
	nodes    []NodeInfo
	children [][]int
	roots    []int

	pending       bool
	dirtyUniforms []bool
	boundsUpdates uint64
}

// NewNodeTable builds the arena and derives child lists from parent indices.
func NewNodeTable(descs []NodeDesc) (*NodeTable, error) {
	t := &NodeTable{
		nodes:    make([]NodeInfo, len(descs)),
		children: make([][]int, len(descs)),
		pending:  len(descs) > 0,
	}
	for i, d := range descs {
		if d.Parent < -1 || d.Parent >= len(descs) || d.Parent == i {
			return nil, fmt.Errorf("node %d: bad parent %d", i, d.Parent)
		}
		if d.Mesh < -1 {
			return nil, fmt.Errorf("node %d: bad mesh %d", i, d.Mesh)
		}
		local := d.Local
		if local == (mgl32.Mat4{}) {
			local = mgl32.Ident4()
		}
		t.nodes[i] = NodeInfo{
			Name:   d.Name,
			Parent: d.Parent,
			Mesh:   d.Mesh,
			Local:  local,
			Dirty:  true,
		}
		if d.Parent < 0 {
			t.roots = append(t.roots, i)
		} else {
			t.children[d.Parent] = append(t.children[d.Parent], i)
		}
	}
	// A parent chain longer than the table means a cycle.
	for i := range t.nodes {
		steps := 0
		for p := t.nodes[i].Parent; p >= 0; p = t.nodes[p].Parent {
			steps++
			if steps > len(t.nodes) {
				return nil, fmt.Errorf("node %d: parent cycle", i)
			}
		}
	}
	return t, nil
}

func (t *NodeTable) Len() int               { return len(t.nodes) }
func (t *NodeTable) Node(i int) *NodeInfo   { return &t.nodes[i] }
func (t *NodeTable) Roots() []int           { return t.roots }
func (t *NodeTable) Children(i int) []int   { return t.children[i] }
func (t *NodeTable) BoundsUpdates() uint64  { return t.boundsUpdates }
func (t *NodeTable) HasPendingUpdate() bool { return t.pending }

// SetLocal replaces a node's local matrix and dirties its subtree.
func (t *NodeTable) SetLocal(i int, local mgl32.Mat4) {
	t.nodes[i].Local = local
	t.MarkDirty(i)
}

// MarkDirty dirties node i and every descendant.
func (t *NodeTable) MarkDirty(i int) {
	stack := []int{i}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.nodes[n].Dirty = true
		stack = append(stack, t.children[n]...)
	}
	t.pending = true
}

func (t *NodeTable) MarkAllDirty() {
	for i := range t.nodes {
		t.nodes[i].Dirty = true
	}
	t.pending = len(t.nodes) > 0
}

// chain composes the local matrices from the root down to node i.
func (t *NodeTable) chain(i int) mgl32.Mat4 {
	m := t.nodes[i].Local
	for p := t.nodes[i].Parent; p >= 0; p = t.nodes[p].Parent {
		m = t.nodes[p].Local.Mul4(m)
	}
	return m
}

// Update recomputes world matrices and world bounds of dirty nodes and
// returns how many nodes were recomputed. A recomputed node is flagged dirty
// for every frame slot. On the following update its previous matrix catches
// up with the current one, which again dirties the uniforms but leaves the
// bounds alone.
func (t *NodeTable) Update(model mgl32.Mat4, meshes []MeshInfo, frameCount int) int {
	t.resizeFrames(frameCount)
	if !t.pending {
		return 0
	}
	t.pending = false

	updated := 0
	for i := range t.nodes {
		n := &t.nodes[i]
		switch {
		case n.Dirty:
			world := model.Mul4(t.chain(i))
			if n.initialized {
				n.PreviousWorld = n.World
				n.syncPrevious = true
				t.pending = true
			} else {
				n.PreviousWorld = world
				n.initialized = true
			}
			n.World = world

			if n.Mesh >= 0 && n.Mesh < len(meshes) {
				prims := meshes[n.Mesh].Primitives
				if cap(n.WorldBoxes) < len(prims) {
					n.WorldBoxes = make([]AABB, len(prims))
				}
				n.WorldBoxes = n.WorldBoxes[:len(prims)]
				for p := range prims {
					n.WorldBoxes[p] = prims[p].BoundingBox.Transform(world)
				}
			}
			n.Dirty = false
			t.boundsUpdates++
			updated++
			t.markUniforms(n)
		case n.syncPrevious:
			n.PreviousWorld = n.World
			n.syncPrevious = false
			t.markUniforms(n)
		}
	}
	return updated
}

func (t *NodeTable) markUniforms(n *NodeInfo) {
	for f := range n.DirtyUniforms {
		n.DirtyUniforms[f] = true
		t.dirtyUniforms[f] = true
	}
}

func (t *NodeTable) resizeFrames(frameCount int) {
	if len(t.dirtyUniforms) == frameCount {
		return
	}
	t.dirtyUniforms = make([]bool, frameCount)
	for i := range t.nodes {
		t.nodes[i].DirtyUniforms = make([]bool, frameCount)
		if t.nodes[i].initialized {
			t.markUniforms(&t.nodes[i])
		}
	}
}

// HasDirtyUniforms reports whether any node still needs its block written
// into frame slot f.
func (t *NodeTable) HasDirtyUniforms(frame int) bool {
	return frame < len(t.dirtyUniforms) && t.dirtyUniforms[frame]
}

// ClearDirtyUniforms resets the table-level flag of frame f after every node
// block was written.
func (t *NodeTable) ClearDirtyUniforms(frame int) {
	if frame < len(t.dirtyUniforms) {
		t.dirtyUniforms[frame] = false
	}
}
