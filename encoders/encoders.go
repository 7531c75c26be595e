// Package encoders keeps the scene writers registered per format id.
// Writers register themselves from init, binaries blank-import the ones
// they need.
package encoders

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/mogaika/scene_exporter/scene"
)

type Format string

const (
	FORMAT_COLLADA Format = "collada"
	FORMAT_OBJ     Format = "obj"
	FORMAT_3DS     Format = "3ds"
	FORMAT_PLY     Format = "ply"
	FORMAT_GLTF    Format = "gltf"
	FORMAT_GLB     Format = "glb"
	FORMAT_FBX     Format = "fbx"
)

var ErrUnknownFormat = errors.New("unknown format")

type Encoder interface {
	Encode(sc *scene.Scene, path string) error
}

// EncoderFunc adapts a plain function to Encoder.
type EncoderFunc func(sc *scene.Scene, path string) error

func (f EncoderFunc) Encode(sc *scene.Scene, path string) error { return f(sc, path) }

var (
	gEncodersLock sync.RWMutex
	gEncoders     = make(map[Format]Encoder)
)

func normalize(format Format) Format {
	return Format(strings.ToLower(strings.TrimPrefix(string(format), ".")))
}

func SetEncoder(format Format, enc Encoder) {
	gEncodersLock.Lock()
	defer gEncodersLock.Unlock()
	gEncoders[normalize(format)] = enc
}

func GetEncoder(format Format) (Encoder, error) {
	gEncodersLock.RLock()
	defer gEncodersLock.RUnlock()
	if enc, found := gEncoders[normalize(format)]; found {
		return enc, nil
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "[encoders] Cannot find encoder for %q", format)
}

// Formats lists registered format ids.
func Formats() []Format {
	gEncodersLock.RLock()
	defer gEncodersLock.RUnlock()
	result := make([]Format, 0, len(gEncoders))
	for f := range gEncoders {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
