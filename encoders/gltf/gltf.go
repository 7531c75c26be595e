// Package gltf writes scenes as glTF 2.0, either as .gltf with a side .bin
// buffer or as a single binary .glb. Skinned meshes get native skins.
package gltf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/scene"
	"github.com/mogaika/scene_exporter/utils"
)

// glTF allows 4 influences per JOINTS_n/WEIGHTS_n set, one set is written
const MAX_INFLUENCES = 4

type Encoder struct {
	Binary bool
}

func init() {
	encoders.SetEncoder(encoders.FORMAT_GLTF, Encoder{})
	encoders.SetEncoder(encoders.FORMAT_GLB, Encoder{Binary: true})
}

func (e Encoder) Encode(sc *scene.Scene, path string) error {
	doc, err := Build(sc, filepath.Dir(path), e.Binary)
	if err != nil {
		return err
	}
	if e.Binary {
		return errors.Wrapf(gltf.SaveBinary(doc, path), "Can't save %q", path)
	}
	if len(doc.Buffers) != 0 {
		doc.Buffers[0].URI = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".bin"
	}
	return errors.Wrapf(gltf.Save(doc, path), "Can't save %q", path)
}

type builder struct {
	sc      *scene.Scene
	doc     *gltf.Document
	baseDir string
	binary  bool

	nodes    map[*scene.Node]uint32
	joints   map[string]uint32
	skeleton *uint32
	meshes   []uint32
	textures map[string]uint32
}

// Build converts the scene into a document without touching the disk except
// for reading textures that get embedded into binary output.
func Build(sc *scene.Scene, baseDir string, binary bool) (*gltf.Document, error) {
	b := &builder{
		sc:       sc,
		doc:      gltf.NewDocument(),
		baseDir:  baseDir,
		binary:   binary,
		nodes:    make(map[*scene.Node]uint32),
		joints:   make(map[string]uint32),
		textures: make(map[string]uint32),
	}
	b.doc.Asset.Generator = "scene_exporter"

	for _, mat := range sc.Materials {
		m, err := b.material(mat)
		if err != nil {
			return nil, err
		}
		b.doc.Materials = append(b.doc.Materials, m)
	}
	if len(b.doc.Textures) != 0 {
		b.doc.Samplers = []*gltf.Sampler{{}}
	}

	for _, mesh := range sc.Meshes {
		b.meshes = append(b.meshes, b.mesh(mesh))
	}

	b.hierarchy()
	return b.doc, nil
}

func (b *builder) texture(slot scene.TextureSlot) (uint32, error) {
	if idx, ok := b.textures[slot.Path]; ok {
		return idx, nil
	}

	var mimeType string
	switch strings.ToLower(filepath.Ext(slot.Path)) {
	case ".png":
		mimeType = "image/png"
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	}

	var image uint32
	if b.binary && mimeType != "" {
		f, err := os.Open(slot.Path)
		if err != nil {
			return 0, errors.Wrapf(err, "Can't open texture %q", slot.Path)
		}
		defer f.Close()
		image, err = modeler.WriteImage(b.doc, filepath.Base(slot.Path), mimeType, f)
		if err != nil {
			return 0, errors.Wrapf(err, "Can't embed texture %q", slot.Path)
		}
		b.doc.Buffers[0].ByteLength = uint32(len(b.doc.Buffers[0].Data))
	} else {
		uri := slot.Path
		if rel, err := filepath.Rel(b.baseDir, slot.Path); err == nil {
			uri = rel
		}
		b.doc.Images = append(b.doc.Images, &gltf.Image{Name: filepath.Base(slot.Path), URI: filepath.ToSlash(uri)})
		image = uint32(len(b.doc.Images) - 1)
	}

	b.doc.Textures = append(b.doc.Textures, &gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(image)})
	idx := uint32(len(b.doc.Textures) - 1)
	b.textures[slot.Path] = idx
	return idx, nil
}

func (b *builder) material(mat *scene.Material) (*gltf.Material, error) {
	var roughness float32 = 1
	var metallic float32 = 0
	m := &gltf.Material{
		Name: mat.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			RoughnessFactor: &roughness,
			MetallicFactor:  &metallic,
		},
		DoubleSided: true,
	}

	for _, slot := range mat.Textures {
		switch slot.Type {
		case scene.TextureTypeDiffuse:
			if m.PBRMetallicRoughness.BaseColorTexture != nil {
				continue
			}
			idx, err := b.texture(slot)
			if err != nil {
				return nil, err
			}
			m.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: idx, TexCoord: uint32(slot.UVIndex)}
		case scene.TextureTypeNormals:
			if m.NormalTexture != nil {
				continue
			}
			idx, err := b.texture(slot)
			if err != nil {
				return nil, err
			}
			m.NormalTexture = &gltf.NormalTexture{Index: gltf.Index(idx)}
		case scene.TextureTypeEmissive:
			if m.EmissiveTexture != nil {
				continue
			}
			idx, err := b.texture(slot)
			if err != nil {
				return nil, err
			}
			m.EmissiveTexture = &gltf.TextureInfo{Index: idx}
			m.EmissiveFactor = [3]float32{1, 1, 1}
		case scene.TextureTypeAmbient, scene.TextureTypeLightmap:
			if m.OcclusionTexture != nil {
				continue
			}
			idx, err := b.texture(slot)
			if err != nil {
				return nil, err
			}
			m.OcclusionTexture = &gltf.OcclusionTexture{Index: gltf.Index(idx)}
		}
	}
	return m, nil
}

type influence struct {
	bone   int
	weight float32
}

// Influences returns at most MAX_INFLUENCES strongest bones per vertex with
// weights normalized to 1. Vertices without weights are bound to bone 0.
func Influences(mesh *scene.Mesh) ([][4]uint16, [][4]float32) {
	perVertex := make([][]influence, len(mesh.Vertices))
	for iBone, bone := range mesh.Bones {
		for _, vw := range bone.Weights {
			if vw.Vertex >= 0 && vw.Vertex < len(perVertex) && vw.Weight > 0 {
				perVertex[vw.Vertex] = append(perVertex[vw.Vertex], influence{bone: iBone, weight: vw.Weight})
			}
		}
	}

	joints := make([][4]uint16, len(mesh.Vertices))
	weights := make([][4]float32, len(mesh.Vertices))
	for iVertex, infs := range perVertex {
		if len(infs) == 0 {
			weights[iVertex][0] = 1
			continue
		}
		sort.SliceStable(infs, func(i, j int) bool { return infs[i].weight > infs[j].weight })
		if len(infs) > MAX_INFLUENCES {
			infs = infs[:MAX_INFLUENCES]
		}
		var sum float32
		for _, inf := range infs {
			sum += inf.weight
		}
		for i, inf := range infs {
			joints[iVertex][i] = uint16(inf.bone)
			weights[iVertex][i] = inf.weight / sum
		}
	}
	return joints, weights
}

func (b *builder) mesh(mesh *scene.Mesh) uint32 {
	doc := b.doc
	attributes := make(map[string]uint32)

	positions := make([][3]float32, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		positions[i] = v
	}
	attributes["POSITION"] = modeler.WritePosition(doc, positions)

	if len(mesh.Normals) == len(mesh.Vertices) {
		normals := make([][3]float32, len(mesh.Normals))
		for i, n := range mesh.Normals {
			if n.Len() > 0.5 {
				n = n.Normalize()
			}
			normals[i] = n
		}
		attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
	}

	for iLayer, layer := range mesh.TexCoords {
		if len(layer) != len(mesh.Vertices) || (iLayer != 0 && !usedLayer(layer)) {
			continue
		}
		uvs := make([][2]float32, len(layer))
		for i, uv := range layer {
			uvs[i] = uv
		}
		attributes[fmt.Sprintf("TEXCOORD_%d", iLayer)] = modeler.WriteTextureCoord(doc, uvs)
	}

	if len(mesh.Colors) == len(mesh.Vertices) && len(mesh.Colors) != 0 {
		colors := make([][4]uint8, len(mesh.Colors))
		for i, c := range mesh.Colors {
			colors[i] = utils.ColorFloat(c).Bytes()
		}
		attributes["COLOR_0"] = modeler.WriteColor(doc, colors)
	}

	if mesh.HasBones() {
		joints, weights := Influences(mesh)
		attributes["JOINTS_0"] = modeler.WriteJoints(doc, joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(doc, weights)
	}

	indices := make([]uint32, 0, len(mesh.Faces)*3)
	for _, f := range mesh.Faces {
		indices = append(indices, f[0], f[1], f[2])
	}

	primitive := &gltf.Primitive{Attributes: attributes}
	if len(indices) != 0 {
		primitive.Indices = gltf.Index(modeler.WriteIndices(doc, indices))
	}
	if mesh.MaterialIndex >= 0 && mesh.MaterialIndex < len(b.doc.Materials) {
		primitive.Material = gltf.Index(uint32(mesh.MaterialIndex))
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: mesh.Name, Primitives: []*gltf.Primitive{primitive}})
	return uint32(len(doc.Meshes) - 1)
}

func usedLayer(layer []mgl32.Vec2) bool {
	for _, uv := range layer {
		if uv != (mgl32.Vec2{}) {
			return true
		}
	}
	return false
}

func (b *builder) addNode(n *gltf.Node) uint32 {
	if n.Rotation == [4]float32{} {
		n.Rotation = [4]float32{0, 0, 0, 1}
	}
	if n.Scale == [3]float32{} {
		n.Scale = [3]float32{1, 1, 1}
	}
	b.doc.Nodes = append(b.doc.Nodes, n)
	return uint32(len(b.doc.Nodes) - 1)
}

// hierarchy mirrors the scene graph below the root node. Meshes are attached
// after joints are known so skins can reference them.
func (b *builder) hierarchy() {
	type pending struct {
		node *scene.Node
		idx  uint32
	}
	withMeshes := make([]pending, 0)

	var visit func(n *scene.Node, inSkeleton bool) uint32
	visit = func(n *scene.Node, inSkeleton bool) uint32 {
		idx := b.addNode(&gltf.Node{Name: n.Name, Matrix: [16]float32(n.Transform)})
		b.nodes[n] = idx
		if inSkeleton {
			if _, ok := b.joints[n.Name]; !ok {
				b.joints[n.Name] = idx
			}
		}
		if n.Name == scene.SKELETON_ROOT && b.skeleton == nil {
			b.skeleton = gltf.Index(idx)
			inSkeleton = true
		}
		if len(n.Meshes) != 0 {
			withMeshes = append(withMeshes, pending{node: n, idx: idx})
		}
		for _, child := range n.Children {
			childIdx := visit(child, inSkeleton)
			b.doc.Nodes[idx].Children = append(b.doc.Nodes[idx].Children, childIdx)
		}
		return idx
	}

	for _, child := range b.sc.Root.Children {
		b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, visit(child, false))
	}

	for _, p := range withMeshes {
		for _, iMesh := range p.node.Meshes {
			if iMesh < 0 || iMesh >= len(b.meshes) {
				continue
			}
			mesh := b.sc.Meshes[iMesh]
			node := &gltf.Node{Name: mesh.Name, Mesh: gltf.Index(b.meshes[iMesh]), Matrix: gltf.DefaultMatrix}
			if mesh.HasBones() {
				node.Skin = gltf.Index(b.skin(mesh))
			}
			if len(p.node.Meshes) == 1 && node.Skin == nil {
				b.doc.Nodes[p.idx].Mesh = node.Mesh
				continue
			}
			idx := b.addNode(node)
			if node.Skin != nil {
				// skinned meshes ignore their node transform, keep them at scene level
				b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, idx)
			} else {
				b.doc.Nodes[p.idx].Children = append(b.doc.Nodes[p.idx].Children, idx)
			}
		}
	}
}

func (b *builder) skin(mesh *scene.Mesh) uint32 {
	joints := make([]uint32, len(mesh.Bones))
	matrices := make([][4]float32, 0, len(mesh.Bones)*4)
	for i, bone := range mesh.Bones {
		if idx, ok := b.joints[bone.Name]; ok {
			joints[i] = idx
		} else {
			// bone without node, hang it under the skeleton so the skin stays valid
			joints[i] = b.addNode(&gltf.Node{Name: bone.Name, Matrix: gltf.DefaultMatrix})
			b.joints[bone.Name] = joints[i]
			if b.skeleton != nil {
				b.doc.Nodes[*b.skeleton].Children = append(b.doc.Nodes[*b.skeleton].Children, joints[i])
			} else {
				b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, joints[i])
			}
		}
		m := bone.Offset
		matrices = append(matrices, m.Col(0), m.Col(1), m.Col(2), m.Col(3))
	}

	acc := modeler.WriteTangent(b.doc, matrices)
	b.doc.Accessors[acc].Type = gltf.AccessorMat4
	b.doc.Accessors[acc].Count /= 4
	b.doc.BufferViews[*b.doc.Accessors[acc].BufferView].ByteStride *= 4

	b.doc.Skins = append(b.doc.Skins, &gltf.Skin{
		Name:                mesh.Name,
		Joints:              joints,
		Skeleton:            b.skeleton,
		InverseBindMatrices: gltf.Index(acc),
	})
	return uint32(len(b.doc.Skins) - 1)
}
