package collada

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_exporter/scene"
)

func testScene() *scene.Scene {
	sc := scene.NewScene()
	skeleton := sc.Root.AddChild(scene.NewNode(scene.SKELETON_ROOT))
	pelvis := skeleton.AddChild(scene.NewNode("pelvis"))
	pelvis.Transform = mgl32.Translate3D(0, 1, 0)
	pelvis.AddChild(scene.NewNode("spine 01"))

	tri := &scene.Mesh{
		Name:     "body",
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:  []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Colors:   []mgl32.Vec4{{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}},
		Faces:    []scene.Face{{0, 1, 2}},
	}
	for i := range tri.TexCoords {
		tri.TexCoords[i] = make([]mgl32.Vec2, 3)
	}
	sc.Meshes = []*scene.Mesh{tri, tri}
	sc.Materials = []*scene.Material{{Name: "New Material"}}

	geom := sc.Root.AddChild(scene.NewNode("model"))
	geom.Meshes = []int{0, 1}
	return sc
}

func TestEncodeLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.dae")
	require.NoError(t, Encoder{}.Encode(testScene(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")

	geometryLines := make([]string, 0)
	for _, l := range lines {
		if strings.Contains(l, "<geometry") {
			geometryLines = append(geometryLines, l)
		}
	}
	assert.Equal(t, []string{
		`    <geometry id="mesh_0-mesh" name="mesh_0">`,
		`    <geometry id="mesh_1-mesh" name="mesh_1">`,
	}, geometryLines)

	var doc Collada
	require.NoError(t, xml.Unmarshal(data, &doc))
	require.Len(t, doc.Geometries, 2)
	assert.Equal(t, 1, doc.Geometries[0].Mesh.Triangles.Count)
	assert.Equal(t, "0 1 2", doc.Geometries[0].Mesh.Triangles.P)
	// unused uv channels are dropped
	assert.Len(t, doc.Geometries[0].Mesh.Sources, 4)

	require.Len(t, doc.VisualScenes, 1)
	nodes := doc.VisualScenes[0].Nodes
	require.Len(t, nodes, 2)
	assert.Equal(t, "NODE", nodes[0].Type)
	assert.Equal(t, "JOINT", nodes[0].Nodes[0].Type)
	assert.Equal(t, "spine_01", nodes[0].Nodes[0].Nodes[0].Sid)
	assert.Equal(t, "1 0 0 0 0 1 0 1 0 0 1 0 0 0 0 1", strings.TrimSpace(nodes[0].Nodes[0].Matrix.Value))
	assert.Len(t, nodes[1].InstanceGeometries, 2)
	assert.Equal(t, "#mesh_1-mesh", nodes[1].InstanceGeometries[1].Url)
}

func TestEncodeDeterministic(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.dae"), filepath.Join(dir, "b.dae")
	require.NoError(t, Encoder{}.Encode(testScene(), a))
	require.NoError(t, Encoder{}.Encode(testScene(), b))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestTexturedMaterial(t *testing.T) {
	dir := t.TempDir()
	sc := testScene()
	sc.Materials[0].Textures = []scene.TextureSlot{{
		Path: filepath.Join(dir, "skin.png"), Type: scene.TextureTypeDiffuse, WrapS: scene.WrapModeClamp,
	}}
	doc := Build(sc, dir)

	require.Len(t, doc.Images, 1)
	assert.Equal(t, "skin.png", doc.Images[0].InitFrom)
	diffuse := doc.Effects[0].Profile.Technique.Phong.Diffuse
	require.NotNil(t, diffuse.Texture)
	assert.Equal(t, "CHANNEL0", diffuse.Texture.Texcoord)
	assert.Equal(t, "CLAMP", doc.Effects[0].Profile.NewParams[1].Sampler2D.WrapS)
}

func TestSafeId(t *testing.T) {
	assert.Equal(t, "spine_01", SafeId("spine 01"))
	assert.Equal(t, "_", SafeId(""))
}
