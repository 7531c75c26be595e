package exporter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_exporter/config"
	"github.com/mogaika/scene_exporter/encoders"
	_ "github.com/mogaika/scene_exporter/encoders/collada"
	"github.com/mogaika/scene_exporter/model"
	"github.com/mogaika/scene_exporter/scene"
)

type milestone struct {
	stage   string
	percent int
}

type recorder struct {
	progress []milestone
	notified []bool
	paths    []string
}

func (r *recorder) Progress(stage string, percent int) {
	r.progress = append(r.progress, milestone{stage, percent})
}

func (r *recorder) Notify(success bool, path string) {
	r.notified = append(r.notified, success)
	r.paths = append(r.paths, path)
}

func newTestExporter(cfg *config.Config) (*Exporter, *recorder) {
	if cfg == nil {
		cfg = config.Default()
	}
	rec := &recorder{}
	e := New(cfg, nil)
	e.SetProgressReporter(rec)
	e.SetNotifier(rec)
	return e, rec
}

// fakeEncoder writes a collada-like geometry line so patching is observable
func fakeEncoder(fail bool, scenes *[]*scene.Scene) encoders.Encoder {
	return encoders.EncoderFunc(func(sc *scene.Scene, path string) error {
		if scenes != nil {
			*scenes = append(*scenes, sc)
		}
		if err := os.WriteFile(path, []byte("    <geometry id=\"mesh_0-mesh\" name=\"mesh_0\">\n"), 0644); err != nil {
			return err
		}
		if fail {
			return errors.New("disk full")
		}
		return nil
	})
}

func skinnedRequest(dest string) Request {
	return Request{
		Meshes:      []*model.Mesh{triangle("body", [][]int{{0}, {1}, {0, 1}}, [][]float32{{1}, {1}, {0.5, 0.5}})},
		Skeleton:    twoBoneSkeleton(),
		Textures:    []*model.Texture{solidTexture("skin", 2, 2)},
		Materials:   []*model.Material{{Name: "skin", TextureMaps: []model.TextureMap{{Name: "skin", Type: model.TextureDiffuse}}}},
		Destination: dest,
	}
}

func TestExportMilestones(t *testing.T) {
	e, rec := newTestExporter(nil)
	e.SetEncoder(encoders.FORMAT_COLLADA, fakeEncoder(false, nil))

	_, err := e.Export(context.Background(), skinnedRequest(filepath.Join(t.TempDir(), "body.dae")))
	require.NoError(t, err)

	assert.Equal(t, []milestone{
		{STAGE_SKELETON, 0},
		{"Exporting Texture skin", 0},
		{STAGE_MESHES, 50},
		{STAGE_SAVING, 80},
		{STAGE_DONE, 100},
	}, rec.progress)
	assert.Equal(t, []bool{true}, rec.notified)
}

func TestExportScene(t *testing.T) {
	var scenes []*scene.Scene
	e, _ := newTestExporter(nil)
	e.SetEncoder(encoders.FORMAT_COLLADA, fakeEncoder(false, &scenes))

	dir := t.TempDir()
	result, err := e.Export(context.Background(), skinnedRequest(filepath.Join(dir, "hero.dae")))
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	sc := scenes[0]
	assert.Same(t, sc, result.Scene)

	require.NotNil(t, sc.SkeletonRoot())
	assert.NotNil(t, sc.Root.Find("spine"))

	geometry := sc.Root.Find("hero")
	require.NotNil(t, geometry)
	assert.Equal(t, []int{0}, geometry.Meshes)

	require.Len(t, sc.Materials, 1)
	require.Len(t, sc.Materials[0].Textures, 1)
	assert.Equal(t, filepath.Join(dir, "skin.png"), sc.Materials[0].Textures[0].Path)

	require.Len(t, sc.Meshes, 1)
	assert.Len(t, sc.Meshes[0].Bones, 2)
	assert.NoError(t, result.TextureErr)
}

func TestExportWithoutSkeleton(t *testing.T) {
	var scenes []*scene.Scene
	e, _ := newTestExporter(nil)
	e.SetEncoder(encoders.FORMAT_OBJ, fakeEncoder(false, &scenes))

	mesh := triangle("", nil, nil)
	_, err := e.Export(context.Background(), Request{
		Meshes:      []*model.Mesh{mesh},
		Destination: filepath.Join(t.TempDir(), "prop.obj"),
	})
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Nil(t, scenes[0].SkeletonRoot())
	assert.NotEmpty(t, scenes[0].Meshes[0].Name)
	assert.Equal(t, DEFAULT_MATERIAL_NAME, scenes[0].Materials[0].Name)
}

func TestExportEncodeFailureSkipsPatch(t *testing.T) {
	e, rec := newTestExporter(nil)
	e.SetEncoder(encoders.FORMAT_COLLADA, fakeEncoder(true, nil))

	dest := filepath.Join(t.TempDir(), "body.dae")
	_, err := e.Export(context.Background(), skinnedRequest(dest))
	assert.True(t, errors.Is(err, ErrEncodeFailure))
	assert.Equal(t, []bool{false}, rec.notified)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `id="mesh_0-mesh"`)
}

func TestExportNonColladaNotPatched(t *testing.T) {
	e, _ := newTestExporter(nil)
	e.SetEncoder(encoders.FORMAT_PLY, fakeEncoder(false, nil))

	dest := filepath.Join(t.TempDir(), "body.ply")
	result, err := e.Export(context.Background(), skinnedRequest(dest))
	require.NoError(t, err)
	assert.False(t, result.Patched)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `id="mesh_0-mesh"`)
}

func TestExportColladaFallbackNotPatched(t *testing.T) {
	for _, name := range []string{"body.DAE", "body.xyz"} {
		t.Run(name, func(t *testing.T) {
			e, _ := newTestExporter(nil)
			e.SetEncoder(encoders.FORMAT_COLLADA, fakeEncoder(false, nil))

			dest := filepath.Join(t.TempDir(), name)
			result, err := e.Export(context.Background(), skinnedRequest(dest))
			require.NoError(t, err)
			assert.Equal(t, encoders.FORMAT_COLLADA, result.Format)
			assert.False(t, result.Patched)

			data, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Contains(t, string(data), `id="mesh_0-mesh"`)
		})
	}
}

func TestExportPatchDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Skin.Patch = false
	e, _ := newTestExporter(cfg)
	e.SetEncoder(encoders.FORMAT_COLLADA, fakeEncoder(false, nil))

	result, err := e.Export(context.Background(), skinnedRequest(filepath.Join(t.TempDir(), "body.dae")))
	require.NoError(t, err)
	assert.False(t, result.Patched)
}

func TestExportColladaPatched(t *testing.T) {
	cfg := config.Default()
	cfg.Skin.EmitControllers = true
	e, rec := newTestExporter(cfg)

	dest := filepath.Join(t.TempDir(), "body.dae")
	result, err := e.Export(context.Background(), skinnedRequest(dest))
	require.NoError(t, err)
	assert.True(t, result.Patched)
	assert.Equal(t, encoders.FORMAT_COLLADA, result.Format)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	doc := string(data)
	assert.Contains(t, doc, `<geometry id="meshId0" name="body" >`)
	assert.Contains(t, doc, `url="#meshId0"`)
	assert.Contains(t, doc, `<controller id="mesh-0-skin"`)
	assert.Less(t, strings.Index(doc, "<library_controllers>"), strings.Index(doc, "<library_visual_scenes"))
	assert.Equal(t, []string{dest}, rec.paths)
}

func TestExportErrors(t *testing.T) {
	e, rec := newTestExporter(nil)

	_, err := e.Export(context.Background(), Request{})
	assert.Error(t, err)

	req := skinnedRequest(filepath.Join(t.TempDir(), "body.dae"))
	req.Meshes = append(req.Meshes, nil)
	_, err = e.Export(context.Background(), req)
	assert.Error(t, err)

	req = skinnedRequest(filepath.Join(t.TempDir(), "body.dae"))
	req.Skeleton.Bones[0].Parent = 0
	_, err = e.Export(context.Background(), req)
	assert.True(t, errors.Is(err, ErrSkeletonCycle))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Export(ctx, skinnedRequest(filepath.Join(t.TempDir(), "body.dae")))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.Export(context.Background(), Request{Destination: filepath.Join(t.TempDir(), "x.nope3d")})
	assert.NoError(t, err, "unknown extensions fall back to collada")

	// one notification per call whatever the outcome
	assert.Equal(t, []bool{false, false, false, false, true}, rec.notified)
}

func TestExportObject(t *testing.T) {
	var scenes []*scene.Scene
	e, _ := newTestExporter(nil)
	e.SetEncoder(encoders.FORMAT_OBJ, fakeEncoder(false, &scenes))

	mesh := triangle("crate", [][]int{{0}}, [][]float32{{1}})
	mesh.MaterialIndex = 3
	_, err := e.ExportObject(context.Background(), mesh, filepath.Join(t.TempDir(), "crate.obj"))
	require.NoError(t, err)

	require.Len(t, scenes, 1)
	sc := scenes[0]
	assert.Nil(t, sc.SkeletonRoot())
	require.Len(t, sc.Materials, 1)
	assert.Equal(t, OBJECT_MATERIAL_NAME, sc.Materials[0].Name)
	assert.Equal(t, 0, sc.Meshes[0].MaterialIndex)
	assert.False(t, sc.Meshes[0].HasBones())
	assert.Equal(t, 3, mesh.MaterialIndex, "source mesh untouched")

	_, err = e.ExportObject(context.Background(), nil, "x.obj")
	assert.Error(t, err)
}
