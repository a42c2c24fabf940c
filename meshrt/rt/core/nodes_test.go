package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoLevelModel(t *testing.T) *Model {
	t.Helper()
	cube, err := NewCube("cube", RenderOpaque, mgl32.Vec4{1, 1, 1, 1})
	require.NoError(t, err)
	data := ModelData{
		Label:    "two-level",
		Vertices: cube.Vertices,
		Indices:  cube.Indices,
		Meshes:   cube.Meshes,
		Nodes: []NodeDesc{
			{Name: "root", Parent: -1, Mesh: -1, Local: mgl32.Translate3D(1, 0, 0)},
			{Name: "child", Parent: 0, Mesh: 0, Local: mgl32.Translate3D(0, 1, 0)},
			{Name: "grandchild", Parent: 1, Mesh: 0, Local: mgl32.Translate3D(0, 0, 1)},
		},
	}
	m, err := NewModel(data)
	require.NoError(t, err)
	return m
}

func TestNodeTableHierarchy(t *testing.T) {
	m := twoLevelModel(t)
	nodes := m.Nodes

	assert.Equal(t, []int{0}, nodes.Roots())
	assert.Equal(t, []int{1}, nodes.Children(0))
	assert.Equal(t, []int{2}, nodes.Children(1))

	assert.Equal(t, 3, m.UpdateNodeMatrices(2))
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, nodes.Node(2).World.Col(3).Vec3())
	assert.Equal(t, nodes.Node(2).World, nodes.Node(2).PreviousWorld)

	box := nodes.Node(1).WorldBoxes[0]
	assert.InDelta(t, 0.5, box.Min.X(), 1e-5)
	assert.InDelta(t, 1.5, box.Max.Y(), 1e-5)
	assert.Nil(t, nodes.Node(0).WorldBoxes)
}

func TestNodeTableCleanNodesKeepBounds(t *testing.T) {
	m := twoLevelModel(t)
	nodes := m.Nodes

	m.UpdateNodeMatrices(3)
	assert.Equal(t, uint64(3), nodes.BoundsUpdates())

	// Nothing dirty: nothing recomputed.
	assert.Equal(t, 0, m.UpdateNodeMatrices(3))
	assert.Equal(t, uint64(3), nodes.BoundsUpdates())

	// Dirtying the grandchild leaves its ancestors alone.
	nodes.SetLocal(2, mgl32.Translate3D(0, 0, 5))
	assert.Equal(t, 1, m.UpdateNodeMatrices(3))
	assert.Equal(t, uint64(4), nodes.BoundsUpdates())

	// Dirtying the child takes the grandchild along.
	nodes.SetLocal(1, mgl32.Translate3D(0, 2, 0))
	assert.Equal(t, 2, m.UpdateNodeMatrices(3))
	assert.Equal(t, uint64(6), nodes.BoundsUpdates())
	assert.Equal(t, mgl32.Vec3{1, 2, 5}, nodes.Node(2).World.Col(3).Vec3())
}

func TestNodeTablePreviousWorldCatchesUp(t *testing.T) {
	m := twoLevelModel(t)
	nodes := m.Nodes
	m.UpdateNodeMatrices(2)
	before := nodes.Node(1).World
	for f := 0; f < 2; f++ {
		nodes.ClearDirtyUniforms(f)
		for i := 0; i < nodes.Len(); i++ {
			nodes.Node(i).DirtyUniforms[f] = false
		}
	}

	m.SetMatrix(mgl32.Translate3D(0, 0, 10))
	m.UpdateNodeMatrices(2)
	after := nodes.Node(1).World
	assert.Equal(t, before, nodes.Node(1).PreviousWorld)
	assert.NotEqual(t, before, after)
	assert.True(t, nodes.HasDirtyUniforms(0))
	assert.True(t, nodes.HasDirtyUniforms(1))
	bounds := nodes.BoundsUpdates()

	nodes.ClearDirtyUniforms(0)
	nodes.ClearDirtyUniforms(1)
	assert.Equal(t, 0, m.UpdateNodeMatrices(2))
	assert.Equal(t, after, nodes.Node(1).PreviousWorld)
	assert.Equal(t, bounds, nodes.BoundsUpdates())
	assert.True(t, nodes.HasDirtyUniforms(0))
	assert.False(t, nodes.HasPendingUpdate())
}

func TestNodeTableRejectsBadParents(t *testing.T) {
	_, err := NewNodeTable([]NodeDesc{{Parent: 0, Mesh: -1}})
	assert.Error(t, err)

	_, err = NewNodeTable([]NodeDesc{{Parent: 1, Mesh: -1}, {Parent: 0, Mesh: -1}})
	assert.ErrorContains(t, err, "cycle")

	_, err = NewNodeTable([]NodeDesc{{Parent: 5, Mesh: -1}})
	assert.Error(t, err)
}
