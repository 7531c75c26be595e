package obj

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_exporter/scene"
)

func quadScene() *scene.Scene {
	sc := scene.NewScene()
	mesh := &scene.Mesh{
		Name:     "quad",
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals:  []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Faces:    []scene.Face{{0, 1, 2}, {0, 2, 3}},
	}
	mesh.TexCoords[0] = []mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	sc.Meshes = []*scene.Mesh{mesh}
	sc.Materials = []*scene.Material{{Name: "New Material"}}
	node := sc.Root.AddChild(scene.NewNode("quad"))
	node.Transform = mgl32.Translate3D(0, 0, 2)
	node.Meshes = []int{0, 0}
	return sc
}

func TestExportObjIndexing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportObj(&buf, quadScene(), "quad.mtl"))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "mtllib quad.mtl\n"))
	assert.Contains(t, out, "v 1.000000 1.000000 2.000000\n")
	assert.Contains(t, out, "usemtl New_Material\n")
	assert.Contains(t, out, "f 1/1/1 2/2/2 3/3/3\n")
	// second instance continues numbering
	assert.Contains(t, out, "f 5/5/5 6/6/6 7/7/7\n")
	assert.Equal(t, 8, strings.Count(out, "\nv "))
}

func TestEncodeWritesMatlib(t *testing.T) {
	dir := t.TempDir()
	sc := quadScene()
	sc.Materials[0].Textures = []scene.TextureSlot{{Path: filepath.Join(dir, "quad.png"), Type: scene.TextureTypeDiffuse}}

	path := filepath.Join(dir, "quad.obj")
	require.NoError(t, Encoder{}.Encode(sc, path))

	mtl, err := os.ReadFile(filepath.Join(dir, "quad.mtl"))
	require.NoError(t, err)
	assert.Contains(t, string(mtl), "newmtl New_Material\n")
	assert.Contains(t, string(mtl), "map_Kd quad.png\n")
}
