package fbx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_exporter/scene"
)

func skinnedScene(dir string) *scene.Scene {
	sc := scene.NewScene()
	skeleton := sc.Root.AddChild(scene.NewNode(scene.SKELETON_ROOT))
	pelvis := skeleton.AddChild(scene.NewNode("pelvis"))
	spine := pelvis.AddChild(scene.NewNode("spine"))
	spine.Transform = mgl32.Translate3D(0, 1, 0)

	mesh := &scene.Mesh{
		Name:     "body",
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:  []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Faces:    []scene.Face{{0, 1, 2}},
		Bones: []*scene.Bone{
			{Name: "pelvis", Offset: mgl32.Ident4(), Weights: []scene.VertexWeight{{Vertex: 0, Weight: 1}, {Vertex: 1, Weight: 0.5}}},
			{Name: "spine", Offset: mgl32.Translate3D(0, -1, 0), Weights: []scene.VertexWeight{{Vertex: 1, Weight: 0.5}}},
		},
	}
	mesh.TexCoords[0] = []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}}
	sc.Meshes = []*scene.Mesh{mesh}
	sc.Materials = []*scene.Material{{
		Name:     "New Material",
		Textures: []scene.TextureSlot{{Path: filepath.Join(dir, "skin.png"), Type: scene.TextureTypeDiffuse}},
	}}
	sc.Root.AddChild(scene.NewNode("model")).Meshes = []int{0}
	return sc
}

func modelKinds(b *Builder) map[string]string {
	kinds := make(map[string]string)
	for _, m := range b.Objects("Model") {
		name := m.Properties[1].(string)
		kinds[name[:len(name)-len("\x00\x01Model")]] = m.Properties[2].(string)
	}
	return kinds
}

func TestBuildModels(t *testing.T) {
	b := Build(skinnedScene(""), "body.fbx")

	assert.Equal(t, map[string]string{
		scene.SKELETON_ROOT: "Null",
		"pelvis":            "LimbNode",
		"spine":             "LimbNode",
		"model":             "Null",
		"body":              "Mesh",
	}, modelKinds(b))
	assert.Len(t, b.Objects("Geometry"), 1)
	assert.Len(t, b.Objects("Material"), 1)
}

func TestBuildSkin(t *testing.T) {
	b := Build(skinnedScene(""), "body.fbx")

	deformers := b.Objects("Deformer")
	require.Len(t, deformers, 3)
	assert.Equal(t, "Skin", deformers[0].Properties[2])
	assert.Equal(t, "Cluster", deformers[1].Properties[2])

	indexes := deformers[1].GetNode("Indexes")
	require.NotNil(t, indexes)
	assert.Equal(t, []int32{0, 1}, indexes.Properties[0])
	assert.Equal(t, []float64{1, 0.5}, deformers[1].GetNode("Weights").Properties[0])

	transform := deformers[2].GetNode("Transform").Properties[0].([]float64)
	assert.Equal(t, float64(-1), transform[13])

	poses := b.Objects("Pose")
	require.Len(t, poses, 1)
	assert.Equal(t, int32(2), poses[0].GetNode("NbPoseNodes").Properties[0])
}

func TestBuildTextureConnection(t *testing.T) {
	b := Build(skinnedScene("/out"), "/out/body.fbx")

	require.Len(t, b.Objects("Texture"), 1)
	require.Len(t, b.Objects("Video"), 1)
	assert.Equal(t, "skin.png", b.Objects("Texture")[0].GetNode("RelativeFilename").Properties[0])

	found := false
	for _, c := range b.Connections() {
		if c.Properties[0] == "OP" && len(c.Properties) == 4 && c.Properties[3] == "DiffuseColor" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEncode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body.fbx")
	require.NoError(t, Encoder{}.Encode(skinnedScene(dir), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(data) > 27)
	assert.Equal(t, "Kaydara FBX Binary", string(data[:18]))
}

func TestDefinitionCounts(t *testing.T) {
	b := Build(skinnedScene(""), "body.fbx")
	b.countDefinitions()

	defs := b.Root().GetNode("Definitions")
	counts := make(map[string]int32)
	for _, ot := range defs.GetNodes("ObjectType") {
		counts[ot.Properties[0].(string)] = ot.GetNode("Count").Properties[0].(int32)
	}
	assert.Equal(t, int32(5), counts["Model"])
	assert.Equal(t, int32(3), counts["Deformer"])
	assert.Equal(t, int32(1), counts["Geometry"])
	assert.Equal(t, int32(1), counts["Pose"])
	assert.Equal(t, int32(len(b.objects.Nodes)+1), defs.GetNode("Count").Properties[0])
}
