package exporter

import (
	"github.com/pkg/errors"

	"github.com/mogaika/scene_exporter/model"
	"github.com/mogaika/scene_exporter/scene"
)

const DEFAULT_MAX_SKELETON_DEPTH = 256

// SkeletonGraphBuilder turns the bone list into a node tree under a
// synthetic skeleton_root node.
type SkeletonGraphBuilder struct {
	Resolver *BoneMatrixResolver
	MaxDepth int
}

// Build returns the skeleton_root node. Every bone becomes exactly one node
// carrying its local transform; children keep skeleton order.
func (b *SkeletonGraphBuilder) Build(skeleton *model.Skeleton) (*scene.Node, error) {
	root := scene.NewNode(scene.SKELETON_ROOT)
	if skeleton == nil || len(skeleton.Bones) == 0 {
		return root, nil
	}

	maxDepth := b.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DEFAULT_MAX_SKELETON_DEPTH
	}

	bonesCount := len(skeleton.Bones)
	children := make([][]int, bonesCount)
	roots := make([]int, 0)
	for i, bone := range skeleton.Bones {
		switch {
		case bone.Parent == model.BONE_PARENT_NONE:
			roots = append(roots, i)
		case bone.Parent == i:
			return nil, errors.Wrapf(ErrSkeletonCycle, "bone %q is its own parent", bone.Name)
		case bone.Parent < 0 || bone.Parent >= bonesCount:
			return nil, errors.Wrapf(ErrInvalidSkeleton, "bone %q parent %d out of range", bone.Name, bone.Parent)
		default:
			children[bone.Parent] = append(children[bone.Parent], i)
		}
	}

	type frame struct {
		bone   int
		parent *scene.Node
		depth  int
	}

	stack := make([]frame, 0, bonesCount)
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{bone: roots[i], parent: root, depth: 1})
	}

	visited := make([]bool, bonesCount)
	created := 0
	for len(stack) != 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bone := skeleton.Bones[f.bone]
		if visited[f.bone] {
			return nil, errors.Wrapf(ErrSkeletonCycle, "bone %q reached twice", bone.Name)
		}
		if f.depth > maxDepth {
			return nil, errors.Wrapf(ErrSkeletonTooDeep, "bone %q at depth %d", bone.Name, f.depth)
		}
		visited[f.bone] = true
		created++

		node := scene.NewNode(bone.Name)
		if b.Resolver != nil {
			local, err := b.Resolver.Local(f.bone)
			if err != nil {
				return nil, err
			}
			node.Transform = local
		} else {
			node.Transform = bone.Local()
		}
		f.parent.AddChild(node)

		for i := len(children[f.bone]) - 1; i >= 0; i-- {
			stack = append(stack, frame{bone: children[f.bone][i], parent: node, depth: f.depth + 1})
		}
	}

	if created != bonesCount {
		for i, v := range visited {
			if !v {
				return nil, errors.Wrapf(ErrSkeletonCycle, "bone %q is not reachable from any root", skeleton.Bones[i].Name)
			}
		}
	}

	return root, nil
}
