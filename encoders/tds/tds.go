// Package tds writes scenes as Autodesk 3DS chunk files.
package tds

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"

	"github.com/mogaika/scene_exporter/config"
	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/scene"
)

const (
	CHUNK_MAIN         = 0x4D4D
	CHUNK_VERSION      = 0x0002
	CHUNK_COLOR_24     = 0x0011
	CHUNK_MASTER_SCALE = 0x0100
	CHUNK_EDITOR       = 0x3D3D
	CHUNK_MESH_VERSION = 0x3D3E
	CHUNK_OBJECT       = 0x4000
	CHUNK_TRIMESH      = 0x4100
	CHUNK_VERTICES     = 0x4110
	CHUNK_FACES        = 0x4120
	CHUNK_FACE_MAT     = 0x4130
	CHUNK_UV           = 0x4140
	CHUNK_LOCAL_MATRIX = 0x4160
	CHUNK_MAT_ENTRY    = 0xAFFF
	CHUNK_MAT_NAME     = 0xA000
	CHUNK_MAT_AMBIENT  = 0xA010
	CHUNK_MAT_DIFFUSE  = 0xA020
	CHUNK_MAT_SPECULAR = 0xA030
	CHUNK_MAT_TEXMAP   = 0xA200
	CHUNK_MAT_MAPNAME  = 0xA300

	FILE_VERSION = 3
	// 3ds stores counts as uint16
	MAX_ELEMENTS = math.MaxUint16
)

var ErrTooBig = errors.New("mesh exceeds 3ds limits")

// Encoder converts names with Charmap, Windows 1252 when nil.
type Encoder struct {
	Charmap *charmap.Charmap
}

func init() {
	encoders.SetEncoder(encoders.FORMAT_3DS, Encoder{})
}

func (e Encoder) Encode(sc *scene.Scene, path string) error {
	data, err := e.Marshal(sc, filepath.Dir(path))
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "Can't write %q", path)
}

type writer struct {
	bytes.Buffer
	cm *charmap.Charmap
}

func (w *writer) u16(v uint16)  { binary.Write(w, binary.LittleEndian, v) }
func (w *writer) u32(v uint32)  { binary.Write(w, binary.LittleEndian, v) }
func (w *writer) f32(v float32) { binary.Write(w, binary.LittleEndian, v) }

func (w *writer) str(s string) {
	w.Write(config.EncodeName(w.cm, s))
	w.WriteByte(0)
}

// chunk writes id, total length and whatever fill puts into the body.
func (w *writer) chunk(id uint16, fill func(w *writer) error) error {
	body := &writer{cm: w.cm}
	if err := fill(body); err != nil {
		return err
	}
	w.u16(id)
	w.u32(uint32(6 + body.Len()))
	w.Write(body.Bytes())
	return nil
}

func (e Encoder) Marshal(sc *scene.Scene, baseDir string) ([]byte, error) {
	cm := e.Charmap
	if cm == nil {
		cm = charmap.Windows1252
	}
	w := &writer{cm: cm}
	err := w.chunk(CHUNK_MAIN, func(w *writer) error {
		if err := w.chunk(CHUNK_VERSION, func(w *writer) error {
			w.u32(FILE_VERSION)
			return nil
		}); err != nil {
			return err
		}
		return w.chunk(CHUNK_EDITOR, func(w *writer) error {
			return writeEditor(w, sc, baseDir)
		})
	})
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func materialName(sc *scene.Scene, index int) string {
	if index >= 0 && index < len(sc.Materials) {
		return sc.Materials[index].Name
	}
	return ""
}

func color24(id uint16, r, g, b uint8) func(w *writer) error {
	return func(w *writer) error {
		return w.chunk(id, func(w *writer) error {
			return w.chunk(CHUNK_COLOR_24, func(w *writer) error {
				w.Write([]byte{r, g, b})
				return nil
			})
		})
	}
}

func writeEditor(w *writer, sc *scene.Scene, baseDir string) error {
	if err := w.chunk(CHUNK_MESH_VERSION, func(w *writer) error {
		w.u32(FILE_VERSION)
		return nil
	}); err != nil {
		return err
	}

	for _, mat := range sc.Materials {
		mat := mat
		if err := w.chunk(CHUNK_MAT_ENTRY, func(w *writer) error {
			if err := w.chunk(CHUNK_MAT_NAME, func(w *writer) error {
				w.str(mat.Name)
				return nil
			}); err != nil {
				return err
			}
			for _, c := range []func(w *writer) error{
				color24(CHUNK_MAT_AMBIENT, 0, 0, 0),
				color24(CHUNK_MAT_DIFFUSE, 255, 255, 255),
				color24(CHUNK_MAT_SPECULAR, 0, 0, 0),
			} {
				if err := c(w); err != nil {
					return err
				}
			}
			if slot, ok := mat.Texture(scene.TextureTypeDiffuse); ok {
				name := slot.Path
				if rel, err := filepath.Rel(baseDir, slot.Path); err == nil {
					name = rel
				}
				return w.chunk(CHUNK_MAT_TEXMAP, func(w *writer) error {
					return w.chunk(CHUNK_MAT_MAPNAME, func(w *writer) error {
						w.str(filepath.ToSlash(name))
						return nil
					})
				})
			}
			return nil
		}); err != nil {
			return err
		}
	}

	if err := w.chunk(CHUNK_MASTER_SCALE, func(w *writer) error {
		w.f32(1)
		return nil
	}); err != nil {
		return err
	}

	world := sc.Root.World()
	var walkErr error
	sc.Root.Walk(func(node, _ *scene.Node, _ int) bool {
		for _, iMesh := range node.Meshes {
			if iMesh < 0 || iMesh >= len(sc.Meshes) {
				continue
			}
			mesh := sc.Meshes[iMesh]
			if walkErr = w.chunk(CHUNK_OBJECT, func(w *writer) error {
				w.str(mesh.Name)
				return w.chunk(CHUNK_TRIMESH, func(w *writer) error {
					return writeTrimesh(w, mesh, world[node], materialName(sc, mesh.MaterialIndex))
				})
			}); walkErr != nil {
				return false
			}
		}
		return true
	})
	return walkErr
}

func writeTrimesh(w *writer, mesh *scene.Mesh, m mgl32.Mat4, material string) error {
	if len(mesh.Vertices) > MAX_ELEMENTS || len(mesh.Faces) > MAX_ELEMENTS {
		return errors.Wrapf(ErrTooBig, "mesh %q: %d vertices, %d faces", mesh.Name, len(mesh.Vertices), len(mesh.Faces))
	}

	if err := w.chunk(CHUNK_VERTICES, func(w *writer) error {
		w.u16(uint16(len(mesh.Vertices)))
		for _, v := range mesh.Vertices {
			p := m.Mul4x1(v.Vec4(1))
			w.f32(p[0])
			w.f32(p[1])
			w.f32(p[2])
		}
		return nil
	}); err != nil {
		return err
	}

	if uvs := mesh.TexCoords[0]; len(uvs) == len(mesh.Vertices) {
		if err := w.chunk(CHUNK_UV, func(w *writer) error {
			w.u16(uint16(len(uvs)))
			for _, uv := range uvs {
				w.f32(uv[0])
				w.f32(uv[1])
			}
			return nil
		}); err != nil {
			return err
		}
	}

	if err := w.chunk(CHUNK_LOCAL_MATRIX, func(w *writer) error {
		for _, f := range []float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0} {
			w.f32(f)
		}
		return nil
	}); err != nil {
		return err
	}

	return w.chunk(CHUNK_FACES, func(w *writer) error {
		w.u16(uint16(len(mesh.Faces)))
		for _, f := range mesh.Faces {
			w.u16(uint16(f[0]))
			w.u16(uint16(f[1]))
			w.u16(uint16(f[2]))
			// edge visibility flags
			w.u16(0x7)
		}
		if material == "" || len(mesh.Faces) == 0 {
			return nil
		}
		return w.chunk(CHUNK_FACE_MAT, func(w *writer) error {
			w.str(material)
			w.u16(uint16(len(mesh.Faces)))
			for i := range mesh.Faces {
				w.u16(uint16(i))
			}
			return nil
		})
	})
}
