package exporter

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_exporter/model"
)

// pelvis at y=1 with spine one unit above it
func twoBoneSkeleton() *model.Skeleton {
	return &model.Skeleton{Bones: []*model.Bone{
		{Name: "pelvis", Parent: model.BONE_PARENT_NONE, Translation: mgl32.Vec3{0, 1, 0}, InverseBind: mgl32.Ident4()},
		{Name: "spine", Parent: 0, Translation: mgl32.Vec3{0, 1, 0}, InverseBind: mgl32.Ident4()},
	}}
}

func chainSkeleton(n int) *model.Skeleton {
	s := &model.Skeleton{}
	for i := 0; i < n; i++ {
		s.Bones = append(s.Bones, &model.Bone{Name: string(rune('a' + i)), Parent: i - 1})
	}
	return s
}

func triangle(name string, boneIDs [][]int, weights [][]float32) *model.Mesh {
	m := &model.Mesh{
		Name:            name,
		VertexSkinCount: 4,
		PolygonGroups:   []model.PolygonGroup{{Name: "all", Faces: []int{0, 1, 2}}},
	}
	positions := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	for i, p := range positions {
		v := model.Vertex{Position: p, Normal: mgl32.Vec3{0, 0, 1}, Color: mgl32.Vec4{1, 1, 1, 1}}
		if i < len(boneIDs) {
			v.BoneIDs = boneIDs[i]
		}
		if i < len(weights) {
			v.BoneWeights = weights[i]
		}
		m.Vertices = append(m.Vertices, v)
	}
	return m
}
