// Package collada writes scenes as COLLADA 1.4.1 documents.
// Geometries always get synthetic mesh_N names, real names are restored by
// the skin patcher afterwards.
package collada

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/scene"
)

const (
	COLLADA_NAMESPACE = "http://www.collada.org/2005/11/COLLADASchema"
	COLLADA_VERSION   = "1.4.1"
	AUTHORING_TOOL    = "scene_exporter"
	// fixed so repeated exports are byte identical
	CREATED_TIME = "1970-01-01T00:00:00"
)

func MeshName(index int) string   { return fmt.Sprintf("mesh_%d", index) }
func GeometryId(index int) string { return MeshName(index) + "-mesh" }
func MaterialId(index int) string { return fmt.Sprintf("m%dmat", index) }

type Encoder struct{}

func init() {
	encoders.SetEncoder(encoders.FORMAT_COLLADA, Encoder{})
}

func (Encoder) Encode(sc *scene.Scene, path string) error {
	doc := Build(sc, filepath.Dir(path))

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create %q", path)
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "Can't close %q", path)
}

func Write(w io.Writer, doc *Collada) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrapf(err, "Can't write header")
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "Can't marshal collada")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "Can't write collada")
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// SafeId turns a name into something usable as an xml id.
func SafeId(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func floats(values ...float32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, " ")
}

// rowMajor lays out m the way collada <matrix> expects.
func rowMajor(m mgl32.Mat4) string {
	values := make([]float32, 0, 16)
	for row := 0; row < 4; row++ {
		r := m.Row(row)
		values = append(values, r[:]...)
	}
	return floats(values...)
}
