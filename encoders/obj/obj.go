// Package obj writes scenes as Wavefront OBJ with a MTL material library.
package obj

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/scene"
)

type Encoder struct{}

func init() {
	encoders.SetEncoder(encoders.FORMAT_OBJ, Encoder{})
}

func MatlibPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"
}

func (Encoder) Encode(sc *scene.Scene, path string) error {
	matlibPath := MatlibPath(path)
	if err := writeFile(matlibPath, func(w io.Writer) error {
		return ExportMatlib(w, sc, filepath.Dir(path))
	}); err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error {
		return ExportObj(w, sc, filepath.Base(matlibPath))
	})
}

func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create %q", path)
	}
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "Can't write %q", path)
	}
	return errors.Wrapf(f.Close(), "Can't close %q", path)
}

func materialName(sc *scene.Scene, index int) string {
	if index >= 0 && index < len(sc.Materials) && sc.Materials[index].Name != "" {
		return strings.ReplaceAll(sc.Materials[index].Name, " ", "_")
	}
	return fmt.Sprintf("material%d", index)
}

func ExportMatlib(_w io.Writer, sc *scene.Scene, baseDir string) error {
	var err error
	w := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(_w, format+"\n", args...)
		}
	}

	texPath := func(slot scene.TextureSlot) string {
		if rel, err := filepath.Rel(baseDir, slot.Path); err == nil {
			return filepath.ToSlash(rel)
		}
		return filepath.ToSlash(slot.Path)
	}

	for iMat, mat := range sc.Materials {
		w("newmtl %s", materialName(sc, iMat))
		w("Ka 0.000000 0.000000 0.000000")
		w("Kd 1.000000 1.000000 1.000000")
		w("Ks 0.000000 0.000000 0.000000")
		w("d 1.000000")
		w("illum 2")
		for _, slot := range mat.Textures {
			switch slot.Type {
			case scene.TextureTypeDiffuse:
				w("map_Kd %s", texPath(slot))
			case scene.TextureTypeAmbient:
				w("map_Ka %s", texPath(slot))
			case scene.TextureTypeSpecular:
				w("map_Ks %s", texPath(slot))
			case scene.TextureTypeNormals:
				w("norm %s", texPath(slot))
			case scene.TextureTypeEmissive:
				w("map_Ke %s", texPath(slot))
			}
		}
		w("")
	}
	return errors.Wrapf(err, "Can't write matlib")
}

type instance struct {
	node  *scene.Node
	world mgl32.Mat4
	mesh  int
}

// instances lists every mesh reference with the world transform of its node.
func instances(sc *scene.Scene) []instance {
	world := sc.Root.World()
	result := make([]instance, 0)
	sc.Root.Walk(func(node, _ *scene.Node, _ int) bool {
		for _, iMesh := range node.Meshes {
			if iMesh >= 0 && iMesh < len(sc.Meshes) {
				result = append(result, instance{node: node, world: world[node], mesh: iMesh})
			}
		}
		return true
	})
	return result
}

func ExportObj(_w io.Writer, sc *scene.Scene, matlib string) error {
	var err error
	w := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(_w, format+"\n", args...)
		}
	}

	if matlib != "" {
		w("mtllib %s", matlib)
	}

	iV := uint32(1)
	iT := uint32(1)
	iN := uint32(1)

	for _, inst := range instances(sc) {
		mesh := sc.Meshes[inst.mesh]
		normalMat := inst.world.Mat3().Inv().Transpose()

		haveUV := len(mesh.TexCoords[0]) == len(mesh.Vertices)
		haveNorm := len(mesh.Normals) == len(mesh.Vertices)

		w("o %s", strings.ReplaceAll(mesh.Name, " ", "_"))
		for iVertex, v := range mesh.Vertices {
			p := inst.world.Mul4x1(v.Vec4(1)).Vec3()
			if iVertex < len(mesh.Colors) {
				c := mesh.Colors[iVertex]
				w("v %f %f %f %f %f %f", p[0], p[1], p[2], c[0], c[1], c[2])
			} else {
				w("v %f %f %f", p[0], p[1], p[2])
			}
		}
		if haveUV {
			for _, uv := range mesh.TexCoords[0] {
				w("vt %f %f", uv[0], 1-uv[1])
			}
		}
		if haveNorm {
			for _, normal := range mesh.Normals {
				n := normalMat.Mul3x1(normal)
				if n.Len() != 0 {
					n = n.Normalize()
				}
				w("vn %f %f %f", n[0], n[1], n[2])
			}
		}

		w("usemtl %s", materialName(sc, mesh.MaterialIndex))
		for _, f := range mesh.Faces {
			if haveNorm {
				if haveUV {
					w("f %v/%v/%v %v/%v/%v %v/%v/%v",
						iV+f[0], iT+f[0], iN+f[0],
						iV+f[1], iT+f[1], iN+f[1],
						iV+f[2], iT+f[2], iN+f[2])
				} else {
					w("f %v//%v %v//%v %v//%v",
						iV+f[0], iN+f[0],
						iV+f[1], iN+f[1],
						iV+f[2], iN+f[2])
				}
			} else {
				if haveUV {
					w("f %v/%v %v/%v %v/%v",
						iV+f[0], iT+f[0],
						iV+f[1], iT+f[1],
						iV+f[2], iT+f[2])
				} else {
					w("f %v %v %v", iV+f[0], iV+f[1], iV+f[2])
				}
			}
		}

		iV += uint32(len(mesh.Vertices))
		if haveUV {
			iT += uint32(len(mesh.TexCoords[0]))
		}
		if haveNorm {
			iN += uint32(len(mesh.Normals))
		}
	}

	return errors.Wrapf(err, "Can't write obj")
}
