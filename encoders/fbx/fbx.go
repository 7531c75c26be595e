// Package fbx writes scenes as binary fbx 7.4 with bones as LimbNode models
// and skin clusters for weighted meshes.
package fbx

import (
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/scene"
	"github.com/mogaika/scene_exporter/utils"
)

// texture slot type to material property it is connected to
var textureProperties = map[scene.TextureType]string{
	scene.TextureTypeDiffuse:  "DiffuseColor",
	scene.TextureTypeAmbient:  "AmbientColor",
	scene.TextureTypeNormals:  "NormalMap",
	scene.TextureTypeLightmap: "AmbientColor",
	scene.TextureTypeEmissive: "EmissiveColor",
	scene.TextureTypeSpecular: "SpecularColor",
}

type Encoder struct{}

func init() {
	encoders.SetEncoder(encoders.FORMAT_FBX, Encoder{})
}

func (Encoder) Encode(sc *scene.Scene, path string) error {
	b := Build(sc, path)

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create %q", path)
	}
	if err := b.Write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "Can't close %q", path)
}

type exporter struct {
	*Builder
	sc      *scene.Scene
	baseDir string

	materials []int64
	textures  map[string]int64
	bones     map[string]int64
	world     map[*scene.Node]mgl32.Mat4
	poses     []*fbx.Node
}

// Build converts the scene into fbx nodes without writing anything.
func Build(sc *scene.Scene, path string) *Builder {
	e := &exporter{
		Builder:  NewBuilder(path),
		sc:       sc,
		baseDir:  filepath.Dir(path),
		textures: make(map[string]int64),
		bones:    make(map[string]int64),
		world:    sc.Root.World(),
	}

	for _, mat := range sc.Materials {
		e.materials = append(e.materials, e.material(mat))
	}
	for _, child := range sc.Root.Children {
		e.node(child, 0, false)
	}
	e.bindPose()
	return e.Builder
}

func lclProperties(m mgl32.Mat4) []*fbx.Node {
	pos, q, scale := utils.Decompose(m)
	rotation := utils.RadiansToDegreeV3(utils.QuatToEuler(q))
	return []*fbx.Node{
		bfbx73.P("Lcl Translation", "Lcl Translation", "", "A",
			float64(pos[0]), float64(pos[1]), float64(pos[2])),
		bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A",
			float64(rotation[0]), float64(rotation[1]), float64(rotation[2])),
		bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A",
			float64(scale[0]), float64(scale[1]), float64(scale[2])),
	}
}

func (e *exporter) model(name, kind string, m mgl32.Mat4) int64 {
	id := e.GenerateId()
	props := bfbx73.Properties70().AddNodes(
		bfbx73.P("InheritType", "enum", "", "", int32(1)),
		bfbx73.P("DefaultAttributeIndex", "int", "Integer", "", int32(0)),
	)
	props.AddNodes(lclProperties(m)...)

	e.AddObjects(bfbx73.Model(id, name+"\x00\x01Model", kind).AddNodes(
		bfbx73.Version(232),
		props,
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	))
	return id
}

// node adds the model of n and its subtree. Bones are every node below
// the skeleton root.
func (e *exporter) node(n *scene.Node, parent int64, inSkeleton bool) {
	kind := "Null"
	if inSkeleton {
		kind = "LimbNode"
	}
	id := e.model(n.Name, kind, n.Transform)

	attribute := bfbx73.NodeAttribute(e.GenerateId(), n.Name+"\x00\x01NodeAttribute", kind).AddNodes(
		bfbx73.TypeFlags(kind),
	)
	e.AddObjects(attribute)
	e.AddConnections(
		bfbx73.C("OO", attribute.Properties[0].(int64), id),
		bfbx73.C("OO", id, parent),
	)

	if inSkeleton {
		if _, ok := e.bones[n.Name]; !ok {
			e.bones[n.Name] = id
			e.addPose(id, e.world[n])
		}
	}

	for _, iMesh := range n.Meshes {
		if iMesh >= 0 && iMesh < len(e.sc.Meshes) {
			e.mesh(e.sc.Meshes[iMesh], id)
		}
	}

	for _, child := range n.Children {
		e.node(child, id, inSkeleton || n.Name == scene.SKELETON_ROOT)
	}
}

func (e *exporter) layerElement(layer *fbx.Node, kind string) {
	layer.AddNode(
		bfbx73.LayerElement().AddNodes(
			bfbx73.Type(kind),
			bfbx73.TypedIndex(0),
		),
	)
}

func (e *exporter) mesh(mesh *scene.Mesh, parent int64) {
	vertices := make([]float64, 0, len(mesh.Vertices)*3)
	for _, v := range mesh.Vertices {
		vertices = append(vertices, float64(v[0]), float64(v[1]), float64(v[2]))
	}

	indexes := make([]int32, 0, len(mesh.Faces)*3)
	uvindexes := make([]int32, 0, len(mesh.Faces)*3)
	for _, f := range mesh.Faces {
		// last index of polygon is stored as -(i)-1
		indexes = append(indexes, int32(f[0]), int32(f[1]), -int32(f[2])-1)
		uvindexes = append(uvindexes, int32(f[0]), int32(f[1]), int32(f[2]))
	}

	geometryId := e.GenerateId()
	geometryLayer := bfbx73.Layer(0).AddNodes(
		bfbx73.Version(100),
	)
	geometry := bfbx73.Geometry(geometryId, "\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
		),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(indexes),
		geometryLayer,
	)

	if len(mesh.Normals) == len(mesh.Vertices) {
		normals := make([]float64, 0, len(mesh.Normals)*3)
		for _, n := range mesh.Normals {
			normals = append(normals, float64(n[0]), float64(n[1]), float64(n[2]))
		}
		geometry.AddNode(
			bfbx73.LayerElementNormal(0).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("ByVertice"),
				bfbx73.ReferenceInformationType("Direct"),
				bfbx73.Normals(normals),
			),
		)
		e.layerElement(geometryLayer, "LayerElementNormal")
	}

	if len(mesh.Colors) == len(mesh.Vertices) && len(mesh.Colors) != 0 {
		rgba := make([]float64, 0, len(mesh.Colors)*4)
		for _, c := range mesh.Colors {
			rgba = append(rgba, float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3]))
		}
		geometry.AddNode(
			bfbx73.LayerElementColor(0).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("ByVertice"),
				bfbx73.ReferenceInformationType("Direct"),
				bfbx73.Colors(rgba),
			),
		)
		e.layerElement(geometryLayer, "LayerElementColor")
	}

	if uvs := mesh.TexCoords[0]; len(uvs) == len(mesh.Vertices) && len(uvs) != 0 {
		uv := make([]float64, 0, len(uvs)*2)
		for _, t := range uvs {
			uv = append(uv, float64(t[0]), float64(1-t[1]))
		}
		geometry.AddNode(
			bfbx73.LayerElementUV(0).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("ByPolygonVertex"),
				bfbx73.ReferenceInformationType("IndexToDirect"),
				bfbx73.UV(uv),
				bfbx73.UVIndex(uvindexes),
			),
		)
		e.layerElement(geometryLayer, "LayerElementUV")
	}

	geometry.AddNode(
		bfbx73.LayerElementMaterial(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("AllSame"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.Materials([]int32{0}),
		),
	)
	e.layerElement(geometryLayer, "LayerElementMaterial")

	modelId := e.model(mesh.Name, "Mesh", mgl32.Ident4())
	e.AddObjects(geometry)
	e.AddConnections(
		bfbx73.C("OO", geometryId, modelId),
		bfbx73.C("OO", modelId, parent),
	)
	if mesh.MaterialIndex >= 0 && mesh.MaterialIndex < len(e.materials) {
		e.AddConnections(bfbx73.C("OO", e.materials[mesh.MaterialIndex], modelId))
	}

	if mesh.HasBones() {
		e.skin(mesh, geometryId)
	}
}

func deformer(id int64, name, kind string, nodes ...*fbx.Node) *fbx.Node {
	return &fbx.Node{
		Name:       "Deformer",
		Properties: []interface{}{id, name + "\x00\x01Deformer", kind},
		Nodes:      nodes,
	}
}

func rawNode(name string, properties ...interface{}) *fbx.Node {
	return &fbx.Node{Name: name, Properties: properties}
}

// skin binds mesh to bone models with one cluster per bone. Weights go in
// as they are, fbx does not require them to sum to 1.
func (e *exporter) skin(mesh *scene.Mesh, geometryId int64) {
	skinId := e.GenerateId()
	e.AddObjects(deformer(skinId, "", "Skin",
		rawNode("Version", int32(101)),
		rawNode("Link_DeformAcuracy", float64(50)),
	))
	e.AddConnections(bfbx73.C("OO", skinId, geometryId))

	for _, bone := range mesh.Bones {
		boneId, ok := e.bones[bone.Name]
		if !ok {
			continue
		}

		indexes := make([]int32, 0, len(bone.Weights))
		weights := make([]float64, 0, len(bone.Weights))
		for _, vw := range bone.Weights {
			indexes = append(indexes, int32(vw.Vertex))
			weights = append(weights, float64(vw.Weight))
		}

		clusterId := e.GenerateId()
		e.AddObjects(deformer(clusterId, bone.Name, "Cluster",
			rawNode("Version", int32(100)),
			rawNode("UserData", "", ""),
			rawNode("Indexes", indexes),
			rawNode("Weights", weights),
			rawNode("Transform", utils.MatrixToFloat64(bone.Offset)),
			rawNode("TransformLink", utils.MatrixToFloat64(bone.Offset.Inv())),
		))
		e.AddConnections(
			bfbx73.C("OO", clusterId, skinId),
			bfbx73.C("OO", boneId, clusterId),
		)
	}
}

func (e *exporter) addPose(id int64, world mgl32.Mat4) {
	e.poses = append(e.poses, &fbx.Node{
		Name: "PoseNode",
		Nodes: []*fbx.Node{
			rawNode("Node", id),
			rawNode("Matrix", utils.MatrixToFloat64(world)),
		},
	})
}

func (e *exporter) bindPose() {
	if len(e.poses) == 0 {
		return
	}
	nodes := []*fbx.Node{
		rawNode("Type", "BindPose"),
		rawNode("Version", int32(100)),
		rawNode("NbPoseNodes", int32(len(e.poses))),
	}
	e.AddObjects(&fbx.Node{
		Name:       "Pose",
		Properties: []interface{}{e.GenerateId(), "\x00\x01Pose", "BindPose"},
		Nodes:      append(nodes, e.poses...),
	})
}

func (e *exporter) material(mat *scene.Material) int64 {
	id := e.GenerateId()
	e.AddObjects(bfbx73.Material(id, mat.Name+"\x00\x01Material", "").AddNodes(
		bfbx73.Version(102),
		bfbx73.ShadingModel("lambert"),
		bfbx73.MultiLayer(0),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("AmbientColor", "Color", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("DiffuseColor", "Color", "", "A", float64(1), float64(1), float64(1)),
			bfbx73.P("Emissive", "Vector3D", "Vector", "", float64(0), float64(0), float64(0)),
			bfbx73.P("Ambient", "Vector3D", "Vector", "", float64(0), float64(0), float64(0)),
			bfbx73.P("Diffuse", "Vector3D", "Vector", "", float64(1), float64(1), float64(1)),
			bfbx73.P("Opacity", "double", "Number", "", float64(1)),
		),
	))

	used := make(map[string]struct{})
	for _, slot := range mat.Textures {
		property, ok := textureProperties[slot.Type]
		if !ok {
			continue
		}
		if _, ok := used[property]; ok {
			continue
		}
		used[property] = struct{}{}
		e.AddConnections(bfbx73.C("OP", e.texture(slot), id, property))
	}
	return id
}

func wrapMode(w scene.WrapMode) int32 {
	if w == scene.WrapModeClamp {
		return 1
	}
	return 0
}

// texture references the file next to the scene through a Video clip
func (e *exporter) texture(slot scene.TextureSlot) int64 {
	if id, ok := e.textures[slot.Path]; ok {
		return id
	}

	relative := filepath.Base(slot.Path)
	if rel, err := filepath.Rel(e.baseDir, slot.Path); err == nil {
		relative = rel
	}
	name := filepath.Base(slot.Path)

	videoId := e.GenerateId()
	e.AddObjects(&fbx.Node{
		Name:       "Video",
		Properties: []interface{}{videoId, name + "\x00\x01Video", "Clip"},
		Nodes: []*fbx.Node{
			rawNode("Type", "Clip"),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Path", "KString", "XRefUrl", "", slot.Path),
			),
			rawNode("UseMipMap", int32(0)),
			rawNode("Filename", slot.Path),
			rawNode("RelativeFilename", relative),
		},
	})

	textureId := e.GenerateId()
	e.AddObjects(&fbx.Node{
		Name:       "Texture",
		Properties: []interface{}{textureId, name + "\x00\x01Texture", ""},
		Nodes: []*fbx.Node{
			rawNode("Type", "TextureVideoClip"),
			rawNode("Version", int32(202)),
			rawNode("TextureName", name+"\x00\x01Texture"),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("UseMaterial", "bool", "", "", int32(1)),
				bfbx73.P("WrapModeU", "enum", "", "", wrapMode(slot.WrapS)),
				bfbx73.P("WrapModeV", "enum", "", "", wrapMode(slot.WrapT)),
			),
			rawNode("Media", name+"\x00\x01Video"),
			rawNode("FileName", slot.Path),
			rawNode("RelativeFilename", relative),
		},
	})
	e.AddConnections(bfbx73.C("OO", videoId, textureId))

	e.textures[slot.Path] = textureId
	return textureId
}
