package exporter

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/model"
	"github.com/mogaika/scene_exporter/scene"
)

// weights must be strictly above this to be taken from the vertex
const MIN_WEIGHT_AMOUNT = 0

// MeshConverter converts generic meshes into scene meshes. Skeleton, Resolver
// and Remap are optional; without a skeleton no bones are produced.
type MeshConverter struct {
	Skeleton      *model.Skeleton
	Resolver      *BoneMatrixResolver
	Remap         []int
	MaterialCount int
	Log           *zap.Logger
}

// materialIndex keeps idx only inside (0, count), everything else maps to
// the default material 0.
func materialIndex(idx, count int) int {
	if idx < count && idx > 0 {
		return idx
	}
	return 0
}

func (c *MeshConverter) Convert(src *model.Mesh) (*scene.Mesh, error) {
	verticesCount := len(src.Vertices)
	mesh := &scene.Mesh{
		Name:          src.Name,
		MaterialIndex: materialIndex(src.MaterialIndex, c.MaterialCount),
		Vertices:      make([]mgl32.Vec3, verticesCount),
		Normals:       make([]mgl32.Vec3, verticesCount),
		Colors:        make([]mgl32.Vec4, verticesCount),
		Bones:         make([]*scene.Bone, 0),
	}
	for iLayer := range mesh.TexCoords {
		mesh.TexCoords[iLayer] = make([]mgl32.Vec2, verticesCount)
	}

	for iVertex := range src.Vertices {
		v := &src.Vertices[iVertex]

		mesh.Vertices[iVertex] = v.Position
		mesh.Normals[iVertex] = v.Normal
		for iLayer := range mesh.TexCoords {
			mesh.TexCoords[iLayer][iVertex] = v.UVs[iLayer]
		}
		mesh.Colors[iVertex] = v.Color

		if c.Skeleton != nil {
			if err := c.bindVertex(mesh, src, iVertex); err != nil {
				return nil, errors.Wrapf(err, "mesh %q vertex %d", src.Name, iVertex)
			}
		}
	}

	faces, err := convertTopology(src)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %q", src.Name)
	}
	mesh.Faces = faces

	return mesh, nil
}

func (c *MeshConverter) skeletonBone(boneId int) (int, *model.Bone, error) {
	if c.Remap != nil {
		if boneId < 0 || boneId >= len(c.Remap) {
			return -1, nil, errors.Wrapf(ErrInvalidSkeleton, "bone id %d out of remap table (%d)", boneId, len(c.Remap))
		}
		boneId = c.Remap[boneId]
	}
	if boneId < 0 || boneId >= len(c.Skeleton.Bones) {
		return -1, nil, errors.Wrapf(ErrInvalidSkeleton, "bone id %d out of skeleton (%d)", boneId, len(c.Skeleton.Bones))
	}
	return boneId, c.Skeleton.Bones[boneId], nil
}

func (c *MeshConverter) bindVertex(mesh *scene.Mesh, src *model.Mesh, iVertex int) error {
	v := &src.Vertices[iVertex]

	for j := range v.BoneIDs {
		if j >= src.VertexSkinCount {
			break
		}

		boneId, bone, err := c.skeletonBone(v.BoneIDs[j])
		if err != nil {
			return err
		}

		iBone := mesh.BoneIndex(bone.Name)
		if iBone == -1 {
			offset := bone.InverseBind
			if c.Resolver != nil {
				if offset, err = c.Resolver.InverseBind(boneId); err != nil {
					return err
				}
			}
			mesh.Bones = append(mesh.Bones, &scene.Bone{
				Name:    bone.Name,
				Offset:  offset,
				Weights: make([]scene.VertexWeight, 0),
			})
			iBone = len(mesh.Bones) - 1
			if c.Log != nil {
				c.Log.Debug("bone attached", zap.String("mesh", src.Name), zap.String("bone", bone.Name), zap.Int("index", iBone))
			}
		}

		if weight, ok := slotWeight(v.BoneWeights, j); ok {
			mesh.Bones[iBone].Weights = append(mesh.Bones[iBone].Weights,
				scene.VertexWeight{Vertex: iVertex, Weight: weight})
		}
	}
	return nil
}

// slotWeight applies the lenient weight policy: explicit positive weights are
// clamped to 1, missing weights count as 1, non positive weights add nothing.
// Weights are never renormalized.
func slotWeight(weights []float32, slot int) (float32, bool) {
	if slot >= len(weights) {
		return 1, true
	}
	w := weights[slot]
	if w > MIN_WEIGHT_AMOUNT {
		if w <= 1 {
			return w, true
		}
		return 1, true
	}
	return 0, false
}

func convertTopology(src *model.Mesh) ([]scene.Face, error) {
	verticesCount := len(src.Vertices)
	faces := make([]scene.Face, 0)

	appendFace := func(a, b, c int) error {
		for _, idx := range [3]int{a, b, c} {
			if idx < 0 || idx >= verticesCount {
				return errors.Wrapf(ErrMalformedTopology, "index %d out of %d vertices", idx, verticesCount)
			}
		}
		faces = append(faces, scene.Face{uint32(a), uint32(b), uint32(c)})
		return nil
	}

	if len(src.LODs) != 0 && (src.DisplayLOD < 0 || src.DisplayLOD >= len(src.LODs)) {
		return nil, errors.Wrapf(ErrMalformedTopology, "display lod %d out of %d lods", src.DisplayLOD, len(src.LODs))
	}

	if lod := src.ActiveLODFaces(); len(lod) != 0 {
		if len(lod)%3 != 0 {
			return nil, errors.Wrapf(ErrMalformedTopology, "lod %d index count %d is not a multiple of 3", src.DisplayLOD, len(lod))
		}
		for f := 0; f < len(lod); f += 3 {
			if err := appendFace(lod[f], lod[f+1], lod[f+2]); err != nil {
				return nil, err
			}
		}
		return faces, nil
	}

	for _, group := range src.PolygonGroups {
		// trailing incomplete triple is skipped
		for f := 0; f+2 < len(group.Faces); f += 3 {
			if err := appendFace(group.Faces[f], group.Faces[f+1], group.Faces[f+2]); err != nil {
				return nil, errors.Wrapf(err, "group %q", group.Name)
			}
		}
	}
	return faces, nil
}
