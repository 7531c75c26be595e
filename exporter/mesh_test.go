package exporter

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_exporter/model"
	"github.com/mogaika/scene_exporter/scene"
)

func skinnedConverter(skeleton *model.Skeleton) *MeshConverter {
	return &MeshConverter{
		Skeleton:      skeleton,
		Resolver:      NewBoneMatrixResolver(skeleton, nil),
		MaterialCount: 1,
	}
}

func boneWeights(mesh *scene.Mesh, name string) []scene.VertexWeight {
	if i := mesh.BoneIndex(name); i >= 0 {
		return mesh.Bones[i].Weights
	}
	return nil
}

func TestWeightPolicy(t *testing.T) {
	skeleton := twoBoneSkeleton()
	skeleton.Bones = append(skeleton.Bones, &model.Bone{Name: "head", Parent: 1})

	src := triangle("body",
		[][]int{{0, 1, 2}, {0}, {}},
		[][]float32{{0.5, 2, -1}, {}, {}})
	mesh, err := skinnedConverter(skeleton).Convert(src)
	require.NoError(t, err)

	assert.Equal(t, []scene.VertexWeight{{Vertex: 0, Weight: 0.5}, {Vertex: 1, Weight: 1}}, boneWeights(mesh, "pelvis"))
	assert.Equal(t, []scene.VertexWeight{{Vertex: 0, Weight: 1}}, boneWeights(mesh, "spine"))
	// non positive weight still registers the bone
	require.NotEqual(t, -1, mesh.BoneIndex("head"))
	assert.Empty(t, boneWeights(mesh, "head"))
}

func TestSkinCountLimitsSlots(t *testing.T) {
	src := triangle("body", [][]int{{0, 1}}, [][]float32{{0.5, 0.5}})
	src.VertexSkinCount = 1

	mesh, err := skinnedConverter(twoBoneSkeleton()).Convert(src)
	require.NoError(t, err)
	require.Len(t, mesh.Bones, 1)
	assert.Equal(t, "pelvis", mesh.Bones[0].Name)
}

func TestBoneOffsetFromResolver(t *testing.T) {
	skeleton := twoBoneSkeleton()
	mesh, err := skinnedConverter(skeleton).Convert(triangle("body", [][]int{{1}}, nil))
	require.NoError(t, err)
	require.Len(t, mesh.Bones, 1)

	expected, err := NewBoneMatrixResolver(skeleton, nil).InverseBind(1)
	require.NoError(t, err)
	assert.Equal(t, expected, mesh.Bones[0].Offset)
}

func TestSingleVertexBoundToSpine(t *testing.T) {
	src := &model.Mesh{
		Name:            "body",
		VertexSkinCount: 4,
		Vertices: []model.Vertex{{
			BoneIDs:     []int{1},
			BoneWeights: []float32{1},
		}},
	}
	mesh, err := skinnedConverter(twoBoneSkeleton()).Convert(src)
	require.NoError(t, err)

	require.Len(t, mesh.Bones, 1)
	spine := mesh.Bones[0]
	assert.Equal(t, "spine", spine.Name)
	assert.Equal(t, []scene.VertexWeight{{Vertex: 0, Weight: 1}}, spine.Weights)
	assert.True(t, spine.Offset.ApproxEqual(mgl32.Translate3D(0, -2, 0)), "%v", spine.Offset)
	assert.Empty(t, mesh.Faces)
}

func TestRemap(t *testing.T) {
	c := skinnedConverter(twoBoneSkeleton())
	c.Remap = []int{1, 0}

	mesh, err := c.Convert(triangle("body", [][]int{{0}}, [][]float32{{1}}))
	require.NoError(t, err)
	require.Len(t, mesh.Bones, 1)
	assert.Equal(t, "spine", mesh.Bones[0].Name)

	_, err = c.Convert(triangle("body", [][]int{{2}}, nil))
	assert.True(t, errors.Is(err, ErrInvalidSkeleton))
}

func TestBoneOutOfSkeleton(t *testing.T) {
	_, err := skinnedConverter(twoBoneSkeleton()).Convert(triangle("body", [][]int{{9}}, nil))
	assert.True(t, errors.Is(err, ErrInvalidSkeleton))
}

func TestNoSkeletonNoBones(t *testing.T) {
	mesh, err := (&MeshConverter{}).Convert(triangle("body", [][]int{{0}}, [][]float32{{1}}))
	require.NoError(t, err)
	assert.False(t, mesh.HasBones())
	assert.Len(t, mesh.Vertices, 3)
	assert.Len(t, mesh.Colors, 3)
}

func TestMaterialIndex(t *testing.T) {
	for _, tc := range []struct {
		idx, count, expected int
	}{
		{0, 3, 0},
		{1, 3, 1},
		{2, 3, 2},
		{3, 3, 0},
		{-1, 3, 0},
		{1, 1, 0},
		{5, 0, 0},
	} {
		assert.Equal(t, tc.expected, materialIndex(tc.idx, tc.count), "idx %d count %d", tc.idx, tc.count)
	}

	src := triangle("body", nil, nil)
	src.MaterialIndex = 2
	mesh, err := (&MeshConverter{MaterialCount: 3}).Convert(src)
	require.NoError(t, err)
	assert.Equal(t, 2, mesh.MaterialIndex)
}

func TestTopology(t *testing.T) {
	src := triangle("body", nil, nil)
	src.PolygonGroups = []model.PolygonGroup{
		{Name: "a", Faces: []int{0, 1, 2, 2, 1, 0, 1}},
		{Name: "b", Faces: []int{1, 2, 0}},
	}
	mesh, err := (&MeshConverter{}).Convert(src)
	require.NoError(t, err)
	assert.Equal(t, []scene.Face{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}, mesh.Faces)

	// lod wins over groups
	src.LODs = []model.LOD{{Faces: []int{0, 2, 1}}}
	mesh, err = (&MeshConverter{}).Convert(src)
	require.NoError(t, err)
	assert.Equal(t, []scene.Face{{0, 2, 1}}, mesh.Faces)
}

func TestMalformedTopology(t *testing.T) {
	for name, mutate := range map[string]func(m *model.Mesh){
		"lod not multiple of 3":  func(m *model.Mesh) { m.LODs = []model.LOD{{Faces: []int{0, 1, 2, 0}}} },
		"lod index out of range": func(m *model.Mesh) { m.LODs = []model.LOD{{Faces: []int{0, 1, 3}}} },
		"group index negative":   func(m *model.Mesh) { m.PolygonGroups[0].Faces = []int{0, -1, 2} },
		"display lod missing":    func(m *model.Mesh) { m.LODs = []model.LOD{{Faces: []int{0, 1, 2}}}; m.DisplayLOD = 4 },
	} {
		t.Run(name, func(t *testing.T) {
			src := triangle("body", nil, nil)
			mutate(src)
			_, err := (&MeshConverter{}).Convert(src)
			assert.True(t, errors.Is(err, ErrMalformedTopology), "got %v", err)
		})
	}
}

func TestConvertIdempotent(t *testing.T) {
	src := triangle("body", [][]int{{0, 1}, {1}}, [][]float32{{0.25, 0.75}})
	c := skinnedConverter(twoBoneSkeleton())

	first, err := c.Convert(src)
	require.NoError(t, err)
	second, err := c.Convert(src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
