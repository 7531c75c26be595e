// Package ply writes scenes as ASCII PLY. All mesh instances are merged into
// one vertex and one face list.
package ply

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/scene"
	"github.com/mogaika/scene_exporter/utils"
)

type Encoder struct{}

func init() {
	encoders.SetEncoder(encoders.FORMAT_PLY, Encoder{})
}

func (Encoder) Encode(sc *scene.Scene, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create %q", path)
	}
	bw := bufio.NewWriter(f)
	if err := Export(bw, sc); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "Can't write %q", path)
	}
	return errors.Wrapf(f.Close(), "Can't close %q", path)
}

type vertex struct {
	pos, normal mgl32.Vec3
	uv          mgl32.Vec2
	color       mgl32.Vec4
}

func Export(_w io.Writer, sc *scene.Scene) error {
	vertices := make([]vertex, 0)
	faces := make([][3]uint32, 0)

	world := sc.Root.World()
	sc.Root.Walk(func(node, _ *scene.Node, _ int) bool {
		for _, iMesh := range node.Meshes {
			if iMesh < 0 || iMesh >= len(sc.Meshes) {
				continue
			}
			mesh := sc.Meshes[iMesh]
			m := world[node]
			normalMat := m.Mat3().Inv().Transpose()
			base := uint32(len(vertices))

			for i, p := range mesh.Vertices {
				v := vertex{pos: m.Mul4x1(p.Vec4(1)).Vec3(), color: mgl32.Vec4{1, 1, 1, 1}}
				if i < len(mesh.Normals) {
					v.normal = normalMat.Mul3x1(mesh.Normals[i])
					if v.normal.Len() != 0 {
						v.normal = v.normal.Normalize()
					}
				}
				if i < len(mesh.TexCoords[0]) {
					v.uv = mesh.TexCoords[0][i]
				}
				if i < len(mesh.Colors) {
					v.color = mesh.Colors[i]
				}
				vertices = append(vertices, v)
			}
			for _, f := range mesh.Faces {
				faces = append(faces, [3]uint32{base + f[0], base + f[1], base + f[2]})
			}
		}
		return true
	})

	var err error
	w := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(_w, format+"\n", args...)
		}
	}

	w("ply")
	w("format ascii 1.0")
	w("comment scene_exporter")
	w("element vertex %d", len(vertices))
	w("property float x")
	w("property float y")
	w("property float z")
	w("property float nx")
	w("property float ny")
	w("property float nz")
	w("property float s")
	w("property float t")
	w("property uchar red")
	w("property uchar green")
	w("property uchar blue")
	w("property uchar alpha")
	w("element face %d", len(faces))
	w("property list uchar int vertex_indices")
	w("end_header")

	for _, v := range vertices {
		rgba := utils.ColorFloat(v.color).Bytes()
		w("%g %g %g %g %g %g %g %g %d %d %d %d",
			v.pos[0], v.pos[1], v.pos[2],
			v.normal[0], v.normal[1], v.normal[2],
			v.uv[0], v.uv[1],
			rgba[0], rgba[1], rgba[2], rgba[3])
	}
	for _, f := range faces {
		w("3 %d %d %d", f[0], f[1], f[2])
	}

	return errors.Wrapf(err, "Can't write ply")
}
