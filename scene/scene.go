// Package scene is the format independent scene graph handed to encoders.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

const MAX_TEXCOORDS = 3

type Node struct {
	Name      string
	Transform mgl32.Mat4
	Children  []*Node
	// indexes into Scene.Meshes
	Meshes []int
}

func NewNode(name string) *Node {
	return &Node{Name: name, Transform: mgl32.Ident4()}
}

func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// Find returns the first node named name in depth first order.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(node *Node, _ *Node, _ int) bool {
		if node.Name == name {
			found = node
			return false
		}
		return true
	})
	return found
}

// Walk visits the subtree depth first, parents before children, children in
// order. Returning false from fn stops the walk.
func (n *Node) Walk(fn func(node, parent *Node, depth int) bool) {
	type frame struct {
		node, parent *Node
		depth        int
	}
	stack := []frame{{node: n}}
	for len(stack) != 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.node, f.parent, f.depth) {
			return
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], parent: f.node, depth: f.depth + 1})
		}
	}
}

// World returns the accumulated transform of every node of the subtree.
func (n *Node) World() map[*Node]mgl32.Mat4 {
	world := make(map[*Node]mgl32.Mat4)
	n.Walk(func(node, parent *Node, _ int) bool {
		if parent == nil {
			world[node] = node.Transform
		} else {
			world[node] = world[parent].Mul4(node.Transform)
		}
		return true
	})
	return world
}

type VertexWeight struct {
	Vertex int
	Weight float32
}

type Bone struct {
	Name    string
	Offset  mgl32.Mat4 // inverse bind matrix
	Weights []VertexWeight
}

type Face [3]uint32

type Mesh struct {
	Name          string
	MaterialIndex int

	Vertices  []mgl32.Vec3
	Normals   []mgl32.Vec3
	TexCoords [MAX_TEXCOORDS][]mgl32.Vec2
	Colors    []mgl32.Vec4
	Faces     []Face

	Bones []*Bone
}

func (m *Mesh) BoneIndex(name string) int {
	for i, b := range m.Bones {
		if b.Name == name {
			return i
		}
	}
	return -1
}

func (m *Mesh) HasBones() bool { return len(m.Bones) != 0 }

type Scene struct {
	Root      *Node
	Meshes    []*Mesh
	Materials []*Material
}

func NewScene() *Scene {
	return &Scene{Root: NewNode("RootNode")}
}

func (s *Scene) HasSkin() bool {
	for _, m := range s.Meshes {
		if m.HasBones() {
			return true
		}
	}
	return false
}

// SkeletonRoot returns the node holding the bone hierarchy, if any.
func (s *Scene) SkeletonRoot() *Node {
	for _, child := range s.Root.Children {
		if child.Name == SKELETON_ROOT {
			return child
		}
	}
	return nil
}

const SKELETON_ROOT = "skeleton_root"
