package exporter

import (
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/mogaika/scene_exporter/model"
)

type imageEncoder func(w io.Writer, img image.Image) error

var imageEncoders = map[string]imageEncoder{
	".png": png.Encode,
	".bmp": bmp.Encode,
	".tga": tga.Encode,
	".webp": func(w io.Writer, img image.Image) error {
		return nativewebp.Encode(w, img, nil)
	},
}

func IsSupportedTextureExt(ext string) bool {
	_, ok := imageEncoders[strings.ToLower(ext)]
	return ok
}

// TextureProgressFunc is called once per texture before it is written.
type TextureProgressFunc func(name string, index, total int)

// TextureWriter writes texture bitmaps next to the exported scene.
// Work is split round-robin into Workers groups, one goroutine per group,
// and WriteAll returns only after every group finished.
type TextureWriter struct {
	Ext     string
	MaxSize int
	Workers int
	Log     *zap.Logger
}

type textureJob struct {
	index   int
	texture *model.Texture
	path    string
}

func DefaultTextureWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

func (w *TextureWriter) log() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}

func (w *TextureWriter) ext() string {
	if w.Ext == "" {
		return ".png"
	}
	return strings.ToLower(w.Ext)
}

// jobs dedups textures by output path, first one wins. Textures whose
// output would land outside destDir are dropped, the first such error is
// returned alongside the remaining jobs.
func (w *TextureWriter) jobs(textures []*model.Texture, destDir string) ([]textureJob, error) {
	var rejected error
	seen := make(map[string]struct{}, len(textures))
	jobs := make([]textureJob, 0, len(textures))
	for i, tex := range textures {
		if tex == nil {
			continue
		}
		path := filepath.Join(destDir, tex.Name+w.ext())
		if rel, err := filepath.Rel(destDir, path); !model.IsPlainName(tex.Name) || err != nil || rel != filepath.Base(path) {
			w.log().Error("texture name rejected", zap.String("texture", tex.Name))
			if rejected == nil {
				rejected = errors.Wrapf(model.ErrUnsafePath, "texture name %q", tex.Name)
			}
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		jobs = append(jobs, textureJob{index: i, texture: tex, path: path})
	}
	return jobs, rejected
}

// WriteAll writes every texture to {destDir}/{name}{ext}. A failed texture does
// not stop the others; the first error is returned once all workers are done.
func (w *TextureWriter) WriteAll(ctx context.Context, textures []*model.Texture, destDir string, progress TextureProgressFunc) error {
	encode, ok := imageEncoders[w.ext()]
	if !ok {
		return errors.Errorf("Unsupported texture format %q", w.ext())
	}

	jobs, rejected := w.jobs(textures, destDir)
	if len(jobs) == 0 {
		return rejected
	}

	workers := w.Workers
	if workers <= 0 {
		workers = DefaultTextureWorkers()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	groups := make([][]textureJob, workers)
	for i, job := range jobs {
		groups[i%workers] = append(groups[i%workers], job)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	firstErr = rejected
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	report := func(job textureJob) {
		if progress == nil {
			return
		}
		mu.Lock()
		progress(job.texture.Name, job.index, len(textures))
		mu.Unlock()
	}

	for _, group := range groups {
		wg.Add(1)
		go func(group []textureJob) {
			defer wg.Done()
			for _, job := range group {
				if err := ctx.Err(); err != nil {
					fail(err)
					return
				}
				report(job)
				if err := w.write(job, encode); err != nil {
					w.log().Error("texture write failed", zap.String("path", job.path), zap.Error(err))
					fail(err)
					continue
				}
				w.log().Debug("texture written", zap.String("path", job.path))
			}
		}(group)
	}
	wg.Wait()

	return firstErr
}

func (w *TextureWriter) write(job textureJob, encode imageEncoder) error {
	if job.texture.Source == nil {
		return errors.Errorf("Texture %q has no bitmap", job.texture.Name)
	}
	img, err := job.texture.Source.Image()
	if err != nil {
		return errors.Wrapf(err, "Can't get bitmap of %q", job.texture.Name)
	}
	img = Downscale(img, w.MaxSize)

	f, err := os.Create(job.path)
	if err != nil {
		return errors.Wrapf(err, "Can't create texture file %q", job.path)
	}
	if err := encode(f, img); err != nil {
		f.Close()
		os.Remove(job.path)
		return errors.Wrapf(err, "Can't encode texture %q", job.path)
	}
	if err := f.Close(); err != nil {
		os.Remove(job.path)
		return errors.Wrapf(err, "Can't close texture file %q", job.path)
	}
	return nil
}

// Downscale keeps aspect ratio so that neither side exceeds maxSize.
// maxSize <= 0 means no limit.
func Downscale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	if maxSize <= 0 || (b.Dx() <= maxSize && b.Dy() <= maxSize) {
		return img
	}
	w, h := maxSize, maxSize
	if b.Dx() > b.Dy() {
		h = b.Dy() * maxSize / b.Dx()
	} else {
		w = b.Dx() * maxSize / b.Dy()
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
