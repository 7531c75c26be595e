package exporter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/config"
	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/exporter/skinpatch"
	"github.com/mogaika/scene_exporter/model"
	"github.com/mogaika/scene_exporter/scene"
	"github.com/mogaika/scene_exporter/utils"
)

const (
	STAGE_SKELETON = "Exporting Skeleton..."
	STAGE_MESHES   = "Exporting Meshes..."
	STAGE_SAVING   = "Saving File..."
	STAGE_DONE     = "Done"

	OBJECT_MATERIAL_NAME = "NewMaterial"
)

type ProgressReporter interface {
	Progress(stage string, percent int)
}

type Notifier interface {
	Notify(success bool, path string)
}

type Request struct {
	Meshes      []*model.Mesh
	Materials   []*model.Material
	Textures    []*model.Texture
	Skeleton    *model.Skeleton
	Remap       []int
	Destination string
}

type Result struct {
	Path    string
	Format  encoders.Format
	Scene   *scene.Scene
	Patched bool
	// failed texture writes, export still succeeds
	TextureErr error
}

// Exporter runs one export at a time, concurrent calls wait for each other.
type Exporter struct {
	cfg      *config.Config
	log      *zap.Logger
	progress ProgressReporter
	notifier Notifier
	encoders map[encoders.Format]encoders.Encoder
	lock     sync.Mutex
}

func New(cfg *config.Config, log *zap.Logger) *Exporter {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		cfg:      cfg,
		log:      log.Named("exporter"),
		encoders: make(map[encoders.Format]encoders.Encoder),
	}
}

func (e *Exporter) SetProgressReporter(p ProgressReporter) { e.progress = p }
func (e *Exporter) SetNotifier(n Notifier)                 { e.notifier = n }

// SetEncoder overrides the globally registered encoder for format.
func (e *Exporter) SetEncoder(format encoders.Format, enc encoders.Encoder) {
	e.encoders[format] = enc
}

func (e *Exporter) encoder(format encoders.Format) (encoders.Encoder, error) {
	if enc, ok := e.encoders[format]; ok {
		return enc, nil
	}
	return encoders.GetEncoder(format)
}

func (e *Exporter) report(stage string, percent int) {
	e.log.Debug("progress", zap.String("stage", stage), zap.Int("percent", percent))
	if e.progress != nil {
		e.progress.Progress(stage, percent)
	}
}

func (e *Exporter) notify(success bool, path string) {
	if success {
		e.log.Info("exported", zap.String("path", path))
	} else {
		e.log.Error("export failed", zap.String("path", path))
	}
	if e.notifier != nil {
		e.notifier.Notify(success, path)
	}
}

// Export converts the request into a scene, writes it in the format selected
// by the destination extension and patches collada output. Notify is called
// exactly once, whatever the outcome.
func (e *Exporter) Export(ctx context.Context, req Request) (result *Result, err error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	defer func() {
		if err != nil {
			e.log.Error("export error", zap.String("path", req.Destination), zap.Error(err))
		}
		e.notify(err == nil, req.Destination)
	}()

	if req.Destination == "" {
		return nil, errors.New("Empty destination path")
	}

	e.report(STAGE_SKELETON, 0)

	sc := scene.NewScene()
	resolver := NewBoneMatrixResolver(req.Skeleton, e.log.Named("bones"))
	if req.Skeleton != nil {
		builder := &SkeletonGraphBuilder{Resolver: resolver, MaxDepth: e.cfg.Skin.MaxSkeletonDepth}
		skeletonRoot, err := builder.Build(req.Skeleton)
		if err != nil {
			return nil, err
		}
		sc.Root.AddChild(skeletonRoot)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result = &Result{
		Path:   req.Destination,
		Format: FormatForPath(req.Destination),
		Scene:  sc,
	}

	destDir := filepath.Dir(req.Destination)
	textures := &TextureWriter{
		Ext:     e.cfg.Textures.Format,
		MaxSize: e.cfg.Textures.MaxSize,
		Workers: e.cfg.Textures.Workers,
		Log:     e.log.Named("textures"),
	}
	result.TextureErr = textures.WriteAll(ctx, req.Textures, destDir, func(name string, index, total int) {
		e.report(fmt.Sprintf("Exporting Texture %s", name), index*100/total)
	})
	if result.TextureErr != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.log.Warn("some textures were not written", zap.Error(result.TextureErr))
	}

	materials := &MaterialConverter{
		DestDir:    destDir,
		TextureExt: e.cfg.Textures.Format,
		Log:        e.log.Named("materials"),
	}
	sc.Materials = materials.Convert(req.Materials)

	e.report(STAGE_MESHES, 50)

	if err := e.convertMeshes(sc, req, resolver); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.report(STAGE_SAVING, 80)

	if err := e.save(sc, result); err != nil {
		return nil, err
	}

	e.report(STAGE_DONE, 100)
	return result, nil
}

func (e *Exporter) convertMeshes(sc *scene.Scene, req Request, resolver *BoneMatrixResolver) error {
	converter := &MeshConverter{
		Skeleton:      req.Skeleton,
		Resolver:      resolver,
		Remap:         req.Remap,
		MaterialCount: len(sc.Materials),
		Log:           e.log.Named("meshes"),
	}
	var names utils.RandomNameGenerator
	for _, src := range req.Meshes {
		if src != nil && src.Name != "" {
			names.Reserve(src.Name)
		}
	}

	for i, src := range req.Meshes {
		if src == nil {
			return errors.Errorf("Mesh %d is nil", i)
		}
		mesh, err := converter.Convert(src)
		if err != nil {
			return err
		}
		if mesh.Name == "" {
			mesh.Name = names.RandomName()
			e.log.Debug("mesh has no name", zap.Int("index", i), zap.String("generated", mesh.Name))
		}
		sc.Meshes = append(sc.Meshes, mesh)
	}

	geometry := scene.NewNode(strings.TrimSuffix(filepath.Base(req.Destination), filepath.Ext(req.Destination)))
	for i := range sc.Meshes {
		geometry.Meshes = append(geometry.Meshes, i)
	}
	sc.Root.AddChild(geometry)
	return nil
}

func (e *Exporter) save(sc *scene.Scene, result *Result) error {
	enc, err := e.encoder(result.Format)
	if err != nil {
		return errors.Wrapf(ErrEncodeFailure, "%v", err)
	}
	if err := enc.Encode(sc, result.Path); err != nil {
		return errors.Wrapf(ErrEncodeFailure, "%s to %q: %v", result.Format, result.Path, err)
	}

	if result.Format != encoders.FORMAT_COLLADA || !NeedsSkinPatch(result.Path) || !e.cfg.Skin.Patch {
		return nil
	}

	names := make([]string, len(sc.Meshes))
	for i, mesh := range sc.Meshes {
		names[i] = mesh.Name
	}
	if err := skinpatch.Patch(result.Path, names, sc.Meshes, skinpatch.Options{
		EmitControllers:     e.cfg.Skin.EmitControllers,
		RewriteInstanceRefs: e.cfg.Skin.RewriteInstanceRefs,
		Log:                 e.log.Named("skinpatch"),
	}); err != nil {
		return err
	}
	result.Patched = true
	return nil
}

// ExportObject writes a single mesh without skeleton using one default
// material.
func (e *Exporter) ExportObject(ctx context.Context, mesh *model.Mesh, destination string) (*Result, error) {
	if mesh == nil {
		return nil, errors.New("Nil mesh")
	}
	obj := *mesh
	obj.MaterialIndex = 0
	return e.Export(ctx, Request{
		Meshes:      []*model.Mesh{&obj},
		Materials:   []*model.Material{{Name: OBJECT_MATERIAL_NAME}},
		Destination: destination,
	})
}
