package model

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// Bitmap is a lazily decoded texture image.
type Bitmap interface {
	Image() (image.Image, error)
}

type Texture struct {
	Name   string
	Source Bitmap
}

// ImageBitmap wraps an already decoded image.
type ImageBitmap struct {
	Img image.Image
}

func (b ImageBitmap) Image() (image.Image, error) {
	if b.Img == nil {
		return nil, errors.New("Empty image")
	}
	return b.Img, nil
}

// FileBitmap decodes the image on demand, format picked by file extension.
type FileBitmap struct {
	Path string
}

func (b FileBitmap) Image() (image.Image, error) {
	f, err := os.Open(b.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open texture %q", b.Path)
	}
	defer f.Close()

	img, err := DecodeImage(f, filepath.Ext(b.Path))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't decode texture %q", b.Path)
	}
	return img, nil
}

func DecodeImage(r io.Reader, ext string) (image.Image, error) {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".bmp":
		return bmp.Decode(r)
	case ".tga":
		return tga.Decode(r)
	case ".webp":
		return webp.Decode(r)
	}
	return nil, errors.Errorf("Unsupported image format %q", ext)
}
