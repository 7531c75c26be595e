package exporter

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/model"
)

// BoneMatrixResolver computes world and inverse bind matrices from the
// skeleton hierarchy. One resolver lives for one export only.
type BoneMatrixResolver struct {
	skeleton *model.Skeleton
	world    map[int]mgl32.Mat4
	log      *zap.Logger
}

func NewBoneMatrixResolver(skeleton *model.Skeleton, log *zap.Logger) *BoneMatrixResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &BoneMatrixResolver{
		skeleton: skeleton,
		world:    make(map[int]mgl32.Mat4),
		log:      log,
	}
}

func (r *BoneMatrixResolver) bone(id int) (*model.Bone, error) {
	if r.skeleton == nil || id < 0 || id >= len(r.skeleton.Bones) {
		return nil, errors.Wrapf(ErrInvalidSkeleton, "bone index %d out of range", id)
	}
	return r.skeleton.Bones[id], nil
}

// Local is the forward bone matrix relative to the parent bone.
func (r *BoneMatrixResolver) Local(id int) (mgl32.Mat4, error) {
	b, err := r.bone(id)
	if err != nil {
		return mgl32.Ident4(), err
	}
	return b.Local(), nil
}

// World multiplies local transforms from the root down to bone id.
func (r *BoneMatrixResolver) World(id int) (mgl32.Mat4, error) {
	if m, ok := r.world[id]; ok {
		return m, nil
	}

	chain := make([]int, 0, 16)
	for cur := id; cur != model.BONE_PARENT_NONE; {
		b, err := r.bone(cur)
		if err != nil {
			return mgl32.Ident4(), err
		}
		chain = append(chain, cur)
		if len(chain) > len(r.skeleton.Bones) {
			return mgl32.Ident4(), errors.Wrapf(ErrSkeletonCycle, "bone %q", r.skeleton.Bones[id].Name)
		}
		if m, ok := r.world[b.Parent]; ok && b.Parent != model.BONE_PARENT_NONE {
			// rest of the chain already known
			return r.accumulate(m, chain), nil
		}
		cur = b.Parent
	}
	return r.accumulate(mgl32.Ident4(), chain), nil
}

// chain goes from bone to ancestor, parent is the world of the ancestor's parent
func (r *BoneMatrixResolver) accumulate(parent mgl32.Mat4, chain []int) mgl32.Mat4 {
	m := parent
	for i := len(chain) - 1; i >= 0; i-- {
		m = m.Mul4(r.skeleton.Bones[chain[i]].Local())
		r.world[chain[i]] = m
	}
	return m
}

// InverseBind is the inverse of the rest pose world matrix.
func (r *BoneMatrixResolver) InverseBind(id int) (mgl32.Mat4, error) {
	world, err := r.World(id)
	if err != nil {
		return mgl32.Ident4(), err
	}
	if world.Det() == 0 {
		r.log.Warn("singular bone matrix, using identity inverse",
			zap.String("bone", r.skeleton.Bones[id].Name))
		return mgl32.Ident4(), nil
	}
	return world.Inv(), nil
}
