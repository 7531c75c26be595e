// Package model holds the engine-neutral input of an export: meshes,
// materials, textures and the skeleton they are bound to.
package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

const BONE_PARENT_NONE = -1

// Bone is one joint of a Skeleton. Parent is an index into Skeleton.Bones
// or BONE_PARENT_NONE for root bones.
type Bone struct {
	Name   string
	Parent int

	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3

	// precomputed by the source tool, kept for reference only
	InverseBind mgl32.Mat4
}

// Local returns the bone transform relative to its parent (T*R*S).
// Zero scale and zero quaternion are treated as unset.
func (b *Bone) Local() mgl32.Mat4 {
	scale := b.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	rotation := b.Rotation
	if rotation.W == 0 && rotation.V == (mgl32.Vec3{}) {
		rotation = mgl32.QuatIdent()
	}

	return mgl32.Translate3D(b.Translation[0], b.Translation[1], b.Translation[2]).
		Mul4(rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

func (b *Bone) IsRoot() bool { return b.Parent == BONE_PARENT_NONE }

type Skeleton struct {
	Bones []*Bone
}

// Children returns indexes of direct children of bone in skeleton order.
func (s *Skeleton) Children(bone int) []int {
	children := make([]int, 0)
	for i, b := range s.Bones {
		if b.Parent == bone && i != bone {
			children = append(children, i)
		}
	}
	return children
}

func (s *Skeleton) BoneByName(name string) (int, *Bone) {
	for i, b := range s.Bones {
		if b.Name == name {
			return i, b
		}
	}
	return -1, nil
}

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UVs      [3]mgl32.Vec2
	Color    mgl32.Vec4

	BoneIDs     []int
	BoneWeights []float32
}

// LOD is a flat triangle list, three indexes per face.
type LOD struct {
	Faces []int
}

type PolygonGroup struct {
	Name  string
	Faces []int
}

type Mesh struct {
	Name     string
	Vertices []Vertex

	// only one of LODs[DisplayLOD] or PolygonGroups is used, LOD wins if not empty
	LODs          []LOD
	DisplayLOD    int
	PolygonGroups []PolygonGroup

	MaterialIndex   int
	VertexSkinCount int
}

// ActiveLODFaces returns the face buffer of the displayed LOD or nil.
func (m *Mesh) ActiveLODFaces() []int {
	if m.DisplayLOD < 0 || m.DisplayLOD >= len(m.LODs) {
		return nil
	}
	return m.LODs[m.DisplayLOD].Faces
}
