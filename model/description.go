package model

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Model groups everything a single export consumes.
type Model struct {
	Name      string
	Skeleton  *Skeleton
	Meshes    []*Mesh
	Materials []*Material
	Textures  []*Texture
	// optional, maps vertex bone ids to skeleton bone indexes
	Remap []int
}

type descBone struct {
	Name        string    `yaml:"name"`
	Parent      *int      `yaml:"parent"`
	Translation []float32 `yaml:"translation"`
	Rotation    []float32 `yaml:"rotation"` // x y z w
	Scale       []float32 `yaml:"scale"`
}

type descVertex struct {
	Position []float32   `yaml:"pos"`
	Normal   []float32   `yaml:"nrm"`
	UVs      [][]float32 `yaml:"uv"`
	Color    []float32   `yaml:"color"`
	Bones    []int       `yaml:"bones"`
	Weights  []float32   `yaml:"weights"`
}

type descGroup struct {
	Name  string `yaml:"name"`
	Faces []int  `yaml:"faces"`
}

type descMesh struct {
	Name       string       `yaml:"name"`
	Material   int          `yaml:"material"`
	SkinCount  *int         `yaml:"skin_count"`
	DisplayLOD int          `yaml:"display_lod"`
	Vertices   []descVertex `yaml:"vertices"`
	LODs       [][]int      `yaml:"lods"`
	Groups     []descGroup  `yaml:"groups"`
}

type descTexture struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

type description struct {
	Name      string        `yaml:"name"`
	Bones     []descBone    `yaml:"bones"`
	Meshes    []descMesh    `yaml:"meshes"`
	Materials []Material    `yaml:"materials"`
	Textures  []descTexture `yaml:"textures"`
	Remap     []int         `yaml:"remap"`
}

func vec(in []float32, def ...float32) []float32 {
	out := make([]float32, len(def))
	copy(out, def)
	copy(out, in)
	return out
}

func (d *descBone) bone() *Bone {
	parent := BONE_PARENT_NONE
	if d.Parent != nil {
		parent = *d.Parent
	}
	t := vec(d.Translation, 0, 0, 0)
	r := vec(d.Rotation, 0, 0, 0, 1)
	s := vec(d.Scale, 1, 1, 1)
	return &Bone{
		Name:        d.Name,
		Parent:      parent,
		Translation: mgl32.Vec3{t[0], t[1], t[2]},
		Rotation:    mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}},
		Scale:       mgl32.Vec3{s[0], s[1], s[2]},
		InverseBind: mgl32.Ident4(),
	}
}

func (d *descMesh) mesh() *Mesh {
	m := &Mesh{
		Name:            d.Name,
		MaterialIndex:   d.Material,
		DisplayLOD:      d.DisplayLOD,
		VertexSkinCount: 4,
		Vertices:        make([]Vertex, len(d.Vertices)),
	}
	if d.SkinCount != nil {
		m.VertexSkinCount = *d.SkinCount
	}

	for i, dv := range d.Vertices {
		p := vec(dv.Position, 0, 0, 0)
		n := vec(dv.Normal, 0, 0, 0)
		c := vec(dv.Color, 1, 1, 1, 1)
		v := Vertex{
			Position:    mgl32.Vec3{p[0], p[1], p[2]},
			Normal:      mgl32.Vec3{n[0], n[1], n[2]},
			Color:       mgl32.Vec4{c[0], c[1], c[2], c[3]},
			BoneIDs:     dv.Bones,
			BoneWeights: dv.Weights,
		}
		for iUV := 0; iUV < len(dv.UVs) && iUV < len(v.UVs); iUV++ {
			uv := vec(dv.UVs[iUV], 0, 0)
			v.UVs[iUV] = mgl32.Vec2{uv[0], uv[1]}
		}
		m.Vertices[i] = v
	}

	for _, faces := range d.LODs {
		m.LODs = append(m.LODs, LOD{Faces: faces})
	}
	for _, g := range d.Groups {
		m.PolygonGroups = append(m.PolygonGroups, PolygonGroup{Name: g.Name, Faces: g.Faces})
	}
	return m
}

var ErrUnsafePath = errors.New("Unsafe path")

// IsPlainName reports whether name can be used as a file stem inside a
// single directory.
func IsPlainName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// confine joins file to baseDir and fails if the result leaves baseDir.
func confine(baseDir, file string) (string, error) {
	if filepath.IsAbs(file) || filepath.VolumeName(file) != "" {
		return "", errors.Wrapf(ErrUnsafePath, "absolute path %q", file)
	}
	path := filepath.Join(baseDir, file)
	rel, err := filepath.Rel(filepath.Clean(baseDir), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrUnsafePath, "%q leaves %q", file, baseDir)
	}
	return path, nil
}

// LoadDescription decodes a yaml model description. Texture files are
// resolved relative to baseDir, absolute paths are kept as is.
func LoadDescription(r io.Reader, baseDir string) (*Model, error) {
	return loadDescription(r, baseDir, false)
}

// LoadConfinedDescription is LoadDescription for untrusted input: every
// texture file must stay inside baseDir.
func LoadConfinedDescription(r io.Reader, baseDir string) (*Model, error) {
	return loadDescription(r, baseDir, true)
}

func loadDescription(r io.Reader, baseDir string, confined bool) (*Model, error) {
	var d description
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, errors.Wrapf(err, "Failed to unmarshal yaml")
	}

	mdl := &Model{
		Name:      d.Name,
		Meshes:    make([]*Mesh, 0, len(d.Meshes)),
		Materials: make([]*Material, 0, len(d.Materials)),
		Textures:  make([]*Texture, 0, len(d.Textures)),
		Remap:     d.Remap,
	}

	if len(d.Bones) != 0 {
		mdl.Skeleton = &Skeleton{Bones: make([]*Bone, len(d.Bones))}
		for i := range d.Bones {
			mdl.Skeleton.Bones[i] = d.Bones[i].bone()
		}
	}
	for i := range d.Meshes {
		mdl.Meshes = append(mdl.Meshes, d.Meshes[i].mesh())
	}
	for i := range d.Materials {
		mat := d.Materials[i]
		for _, tm := range mat.TextureMaps {
			if !IsPlainName(tm.Name) {
				return nil, errors.Wrapf(ErrUnsafePath, "material %q texture name %q", mat.Name, tm.Name)
			}
		}
		mdl.Materials = append(mdl.Materials, &mat)
	}
	for _, t := range d.Textures {
		if !IsPlainName(t.Name) {
			return nil, errors.Wrapf(ErrUnsafePath, "texture name %q", t.Name)
		}
		if t.File == "" {
			return nil, errors.Errorf("Texture %q has no file", t.Name)
		}
		path := t.File
		if confined {
			var err error
			if path, err = confine(baseDir, t.File); err != nil {
				return nil, errors.Wrapf(err, "texture %q", t.Name)
			}
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		mdl.Textures = append(mdl.Textures, &Texture{Name: t.Name, Source: FileBitmap{Path: path}})
	}

	return mdl, nil
}

func LoadDescriptionFile(path string) (*Model, error) {
	return loadDescriptionFile(path, false)
}

func LoadConfinedDescriptionFile(path string) (*Model, error) {
	return loadDescriptionFile(path, true)
}

func loadDescriptionFile(path string, confined bool) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open model description")
	}
	defer f.Close()

	return loadDescription(f, filepath.Dir(path), confined)
}
