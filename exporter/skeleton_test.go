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

func TestResolverWorldAndInverseBind(t *testing.T) {
	r := NewBoneMatrixResolver(twoBoneSkeleton(), nil)

	world, err := r.World(1)
	require.NoError(t, err)
	assert.True(t, world.ApproxEqual(mgl32.Translate3D(0, 2, 0)))

	inv, err := r.InverseBind(1)
	require.NoError(t, err)
	assert.True(t, inv.ApproxEqual(mgl32.Translate3D(0, -2, 0)))

	inv, err = r.InverseBind(0)
	require.NoError(t, err)
	assert.True(t, inv.ApproxEqual(mgl32.Translate3D(0, -1, 0)))
}

func TestResolverErrors(t *testing.T) {
	r := NewBoneMatrixResolver(twoBoneSkeleton(), nil)
	_, err := r.InverseBind(5)
	assert.True(t, errors.Is(err, ErrInvalidSkeleton))

	cyclic := &model.Skeleton{Bones: []*model.Bone{
		{Name: "a", Parent: 1},
		{Name: "b", Parent: 0},
	}}
	_, err = NewBoneMatrixResolver(cyclic, nil).World(0)
	assert.True(t, errors.Is(err, ErrSkeletonCycle))

	_, err = NewBoneMatrixResolver(nil, nil).Local(0)
	assert.True(t, errors.Is(err, ErrInvalidSkeleton))
}

func TestSkeletonGraph(t *testing.T) {
	skeleton := twoBoneSkeleton()
	skeleton.Bones = append(skeleton.Bones, &model.Bone{Name: "head", Parent: 1})

	b := &SkeletonGraphBuilder{Resolver: NewBoneMatrixResolver(skeleton, nil)}
	root, err := b.Build(skeleton)
	require.NoError(t, err)
	assert.Equal(t, scene.SKELETON_ROOT, root.Name)

	names := make([]string, 0)
	root.Walk(func(n, _ *scene.Node, depth int) bool {
		if depth > 0 {
			names = append(names, n.Name)
		}
		return true
	})
	assert.Equal(t, []string{"pelvis", "spine", "head"}, names)

	spine := root.Find("spine")
	require.NotNil(t, spine)
	assert.True(t, spine.Transform.ApproxEqual(mgl32.Translate3D(0, 1, 0)))
}

func TestSkeletonGraphRoots(t *testing.T) {
	skeleton := &model.Skeleton{Bones: []*model.Bone{
		{Name: "left", Parent: model.BONE_PARENT_NONE},
		{Name: "right", Parent: model.BONE_PARENT_NONE},
		{Name: "left_hand", Parent: 0},
	}}
	root, err := (&SkeletonGraphBuilder{}).Build(skeleton)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "left", root.Children[0].Name)
	assert.Equal(t, "right", root.Children[1].Name)
	assert.Equal(t, "left_hand", root.Children[0].Children[0].Name)
}

func TestSkeletonGraphEmpty(t *testing.T) {
	root, err := (&SkeletonGraphBuilder{}).Build(&model.Skeleton{})
	require.NoError(t, err)
	assert.Equal(t, scene.SKELETON_ROOT, root.Name)
	assert.Empty(t, root.Children)
}

func TestSkeletonGraphErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		skeleton *model.Skeleton
		maxDepth int
		err      error
	}{
		{"self parent", &model.Skeleton{Bones: []*model.Bone{{Name: "a", Parent: 0}}}, 0, ErrSkeletonCycle},
		{"parent out of range", &model.Skeleton{Bones: []*model.Bone{{Name: "a", Parent: 7}}}, 0, ErrInvalidSkeleton},
		{"cycle without root", &model.Skeleton{Bones: []*model.Bone{{Name: "a", Parent: 1}, {Name: "b", Parent: 0}}}, 0, ErrSkeletonCycle},
		{"too deep", chainSkeleton(5), 3, ErrSkeletonTooDeep},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := (&SkeletonGraphBuilder{MaxDepth: tc.maxDepth}).Build(tc.skeleton)
			assert.True(t, errors.Is(err, tc.err), "got %v", err)
		})
	}

	_, err := (&SkeletonGraphBuilder{MaxDepth: 5}).Build(chainSkeleton(5))
	assert.NoError(t, err)
}
