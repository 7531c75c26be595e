package collada

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_exporter/scene"
)

type Collada struct {
	XMLName      xml.Name      `xml:"COLLADA"`
	Xmlns        string        `xml:"xmlns,attr"`
	Version      string        `xml:"version,attr"`
	Asset        Asset         `xml:"asset"`
	Images       []Image       `xml:"library_images>image"`
	Effects      []Effect      `xml:"library_effects>effect"`
	Materials    []Material    `xml:"library_materials>material"`
	Geometries   []Geometry    `xml:"library_geometries>geometry"`
	VisualScenes []VisualScene `xml:"library_visual_scenes>visual_scene"`
	Scene        SceneInstance `xml:"scene"`
}

type Asset struct {
	Contributor struct {
		AuthoringTool string `xml:"authoring_tool"`
	} `xml:"contributor"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
	Unit     struct {
		Name  string  `xml:"name,attr"`
		Meter float32 `xml:"meter,attr"`
	} `xml:"unit"`
	UpAxis string `xml:"up_axis"`
}

type Image struct {
	Id       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	InitFrom string `xml:"init_from"`
}

type Effect struct {
	Id      string  `xml:"id,attr"`
	Profile Profile `xml:"profile_COMMON"`
}

type Profile struct {
	NewParams []NewParam `xml:"newparam"`
	Technique Technique  `xml:"technique"`
}

type NewParam struct {
	Sid       string     `xml:"sid,attr"`
	Surface   *Surface   `xml:"surface,omitempty"`
	Sampler2D *Sampler2D `xml:"sampler2D,omitempty"`
}

type Surface struct {
	Type     string `xml:"type,attr"`
	InitFrom string `xml:"init_from"`
}

type Sampler2D struct {
	Source string `xml:"source"`
	WrapS  string `xml:"wrap_s,omitempty"`
	WrapT  string `xml:"wrap_t,omitempty"`
}

type Technique struct {
	Sid   string `xml:"sid,attr"`
	Phong Phong  `xml:"phong"`
}

type Phong struct {
	Emission *ColorOrTexture `xml:"emission,omitempty"`
	Ambient  *ColorOrTexture `xml:"ambient,omitempty"`
	Diffuse  *ColorOrTexture `xml:"diffuse,omitempty"`
	Specular *ColorOrTexture `xml:"specular,omitempty"`
}

type ColorOrTexture struct {
	Color   *Color      `xml:"color,omitempty"`
	Texture *TextureRef `xml:"texture,omitempty"`
}

type Color struct {
	Sid   string `xml:"sid,attr,omitempty"`
	Value string `xml:",chardata"`
}

type TextureRef struct {
	Texture  string `xml:"texture,attr"`
	Texcoord string `xml:"texcoord,attr"`
}

type Material struct {
	Id             string `xml:"id,attr"`
	Name           string `xml:"name,attr"`
	InstanceEffect struct {
		Url string `xml:"url,attr"`
	} `xml:"instance_effect"`
}

type Geometry struct {
	Id   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
	Mesh Mesh   `xml:"mesh"`
}

type Mesh struct {
	Sources   []Source  `xml:"source"`
	Vertices  Vertices  `xml:"vertices"`
	Triangles Triangles `xml:"triangles"`
}

type Source struct {
	Id         string     `xml:"id,attr"`
	FloatArray FloatArray `xml:"float_array"`
	Technique  struct {
		Accessor Accessor `xml:"accessor"`
	} `xml:"technique_common"`
}

type FloatArray struct {
	Id    string `xml:"id,attr"`
	Count int    `xml:"count,attr"`
	Value string `xml:",chardata"`
}

type Accessor struct {
	Source string  `xml:"source,attr"`
	Count  int     `xml:"count,attr"`
	Stride int     `xml:"stride,attr"`
	Params []Param `xml:"param"`
}

type Param struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type Vertices struct {
	Id     string  `xml:"id,attr"`
	Inputs []Input `xml:"input"`
}

type Input struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   *int   `xml:"offset,attr,omitempty"`
	Set      *int   `xml:"set,attr,omitempty"`
}

type Triangles struct {
	Count    int     `xml:"count,attr"`
	Material string  `xml:"material,attr,omitempty"`
	Inputs   []Input `xml:"input"`
	P        string  `xml:"p"`
}

type VisualScene struct {
	Id    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Nodes []Node `xml:"node"`
}

type Node struct {
	Id                 string             `xml:"id,attr"`
	Name               string             `xml:"name,attr"`
	Sid                string             `xml:"sid,attr,omitempty"`
	Type               string             `xml:"type,attr"`
	Matrix             Color              `xml:"matrix"`
	InstanceGeometries []InstanceGeometry `xml:"instance_geometry"`
	Nodes              []Node             `xml:"node"`
}

type InstanceGeometry struct {
	Url          string        `xml:"url,attr"`
	BindMaterial *BindMaterial `xml:"bind_material,omitempty"`
}

type BindMaterial struct {
	InstanceMaterials []InstanceMaterial `xml:"technique_common>instance_material"`
}

type InstanceMaterial struct {
	Symbol string `xml:"symbol,attr"`
	Target string `xml:"target,attr"`
}

type SceneInstance struct {
	InstanceVisualScene struct {
		Url string `xml:"url,attr"`
	} `xml:"instance_visual_scene"`
}

func intp(v int) *int { return &v }

func wrapName(w scene.WrapMode) string {
	switch w {
	case scene.WrapModeMirror:
		return "MIRROR"
	case scene.WrapModeClamp:
		return "CLAMP"
	default:
		return "WRAP"
	}
}

// Build converts the scene into a document. baseDir is used to make texture
// paths relative.
func Build(sc *scene.Scene, baseDir string) *Collada {
	doc := &Collada{
		Xmlns:   COLLADA_NAMESPACE,
		Version: COLLADA_VERSION,
	}
	doc.Asset.Contributor.AuthoringTool = AUTHORING_TOOL
	doc.Asset.Created = CREATED_TIME
	doc.Asset.Modified = CREATED_TIME
	doc.Asset.Unit.Name = "meter"
	doc.Asset.Unit.Meter = 1
	doc.Asset.UpAxis = "Y_UP"

	for iMat, mat := range sc.Materials {
		buildMaterial(doc, iMat, mat, baseDir)
	}
	for iMesh, mesh := range sc.Meshes {
		doc.Geometries = append(doc.Geometries, buildGeometry(iMesh, mesh))
	}

	vs := VisualScene{Id: "Scene", Name: "Scene"}
	for _, child := range sc.Root.Children {
		vs.Nodes = append(vs.Nodes, buildNode(sc, child, false))
	}
	doc.VisualScenes = []VisualScene{vs}
	doc.Scene.InstanceVisualScene.Url = "#Scene"
	return doc
}

func buildMaterial(doc *Collada, iMat int, mat *scene.Material, baseDir string) {
	matId := MaterialId(iMat)
	effect := Effect{Id: matId + "-fx"}
	effect.Profile.Technique.Sid = "standard"

	channel := func(t scene.TextureType, fallback string) *ColorOrTexture {
		slot, ok := mat.Texture(t)
		if !ok {
			if fallback == "" {
				return nil
			}
			return &ColorOrTexture{Color: &Color{Sid: t.String(), Value: fallback}}
		}
		imageId := fmt.Sprintf("%s-%s-image", matId, t)
		path := slot.Path
		if rel, err := filepath.Rel(baseDir, slot.Path); err == nil {
			path = rel
		}
		doc.Images = append(doc.Images, Image{Id: imageId, Name: imageId, InitFrom: filepath.ToSlash(path)})

		surface := fmt.Sprintf("%s-%s-surface", matId, t)
		sampler := fmt.Sprintf("%s-%s-sampler", matId, t)
		effect.Profile.NewParams = append(effect.Profile.NewParams,
			NewParam{Sid: surface, Surface: &Surface{Type: "2D", InitFrom: imageId}},
			NewParam{Sid: sampler, Sampler2D: &Sampler2D{Source: surface, WrapS: wrapName(slot.WrapS), WrapT: wrapName(slot.WrapT)}},
		)
		return &ColorOrTexture{Texture: &TextureRef{Texture: sampler, Texcoord: fmt.Sprintf("CHANNEL%d", slot.UVIndex)}}
	}

	phong := &effect.Profile.Technique.Phong
	phong.Emission = channel(scene.TextureTypeEmissive, "0 0 0 1")
	phong.Ambient = channel(scene.TextureTypeAmbient, "0 0 0 1")
	phong.Diffuse = channel(scene.TextureTypeDiffuse, "0.6 0.6 0.6 1")
	phong.Specular = channel(scene.TextureTypeSpecular, "0 0 0 1")

	doc.Effects = append(doc.Effects, effect)

	m := Material{Id: matId, Name: mat.Name}
	m.InstanceEffect.Url = "#" + effect.Id
	doc.Materials = append(doc.Materials, m)
}

func source(id string, count int, params []string, values []float32) Source {
	s := Source{Id: id}
	s.FloatArray = FloatArray{Id: id + "-array", Count: len(values), Value: floats(values...)}
	s.Technique.Accessor = Accessor{Source: "#" + id + "-array", Count: count, Stride: len(params)}
	for _, p := range params {
		s.Technique.Accessor.Params = append(s.Technique.Accessor.Params, Param{Name: p, Type: "float"})
	}
	return s
}

func hasTexCoords(uvs []mgl32.Vec2) bool {
	for _, uv := range uvs {
		if uv != (mgl32.Vec2{}) {
			return true
		}
	}
	return false
}

func buildGeometry(iMesh int, mesh *scene.Mesh) Geometry {
	geomId := GeometryId(iMesh)
	g := Geometry{Id: geomId, Name: MeshName(iMesh)}

	positions := make([]float32, 0, len(mesh.Vertices)*3)
	for _, v := range mesh.Vertices {
		positions = append(positions, v[:]...)
	}
	g.Mesh.Sources = append(g.Mesh.Sources, source(geomId+"-positions", len(mesh.Vertices), []string{"X", "Y", "Z"}, positions))
	g.Mesh.Vertices = Vertices{
		Id:     geomId + "-vertices",
		Inputs: []Input{{Semantic: "POSITION", Source: "#" + geomId + "-positions"}},
	}
	g.Mesh.Triangles = Triangles{
		Count:    len(mesh.Faces),
		Material: "defaultMaterial",
		Inputs:   []Input{{Semantic: "VERTEX", Source: "#" + geomId + "-vertices", Offset: intp(0)}},
	}

	if len(mesh.Normals) == len(mesh.Vertices) {
		normals := make([]float32, 0, len(mesh.Normals)*3)
		for _, n := range mesh.Normals {
			normals = append(normals, n[:]...)
		}
		g.Mesh.Sources = append(g.Mesh.Sources, source(geomId+"-normals", len(mesh.Normals), []string{"X", "Y", "Z"}, normals))
		g.Mesh.Triangles.Inputs = append(g.Mesh.Triangles.Inputs,
			Input{Semantic: "NORMAL", Source: "#" + geomId + "-normals", Offset: intp(0)})
	}

	for iLayer, uvs := range mesh.TexCoords {
		// first channel is always written, others only when used
		if len(uvs) != len(mesh.Vertices) || (iLayer != 0 && !hasTexCoords(uvs)) {
			continue
		}
		values := make([]float32, 0, len(uvs)*2)
		for _, uv := range uvs {
			values = append(values, uv[:]...)
		}
		id := fmt.Sprintf("%s-tex%d", geomId, iLayer)
		g.Mesh.Sources = append(g.Mesh.Sources, source(id, len(uvs), []string{"S", "T"}, values))
		g.Mesh.Triangles.Inputs = append(g.Mesh.Triangles.Inputs,
			Input{Semantic: "TEXCOORD", Source: "#" + id, Offset: intp(0), Set: intp(iLayer)})
	}

	if len(mesh.Colors) == len(mesh.Vertices) && len(mesh.Colors) != 0 {
		colors := make([]float32, 0, len(mesh.Colors)*4)
		for _, c := range mesh.Colors {
			colors = append(colors, c[:]...)
		}
		g.Mesh.Sources = append(g.Mesh.Sources, source(geomId+"-color0", len(mesh.Colors), []string{"R", "G", "B", "A"}, colors))
		g.Mesh.Triangles.Inputs = append(g.Mesh.Triangles.Inputs,
			Input{Semantic: "COLOR", Source: "#" + geomId + "-color0", Offset: intp(0), Set: intp(0)})
	}

	indexes := make([]string, 0, len(mesh.Faces)*3)
	for _, f := range mesh.Faces {
		for _, idx := range f {
			indexes = append(indexes, strconv.FormatUint(uint64(idx), 10))
		}
	}
	g.Mesh.Triangles.P = strings.Join(indexes, " ")
	return g
}

func buildNode(sc *scene.Scene, n *scene.Node, joint bool) Node {
	isSkeletonRoot := !joint && n.Name == scene.SKELETON_ROOT
	node := Node{
		Id:     SafeId(n.Name),
		Name:   n.Name,
		Type:   "NODE",
		Matrix: Color{Sid: "matrix", Value: rowMajor(n.Transform)},
	}
	if joint {
		node.Type = "JOINT"
		node.Sid = SafeId(n.Name)
	}
	for _, iMesh := range n.Meshes {
		if iMesh < 0 || iMesh >= len(sc.Meshes) {
			continue
		}
		ig := InstanceGeometry{Url: "#" + GeometryId(iMesh)}
		if iMat := sc.Meshes[iMesh].MaterialIndex; iMat >= 0 && iMat < len(sc.Materials) {
			ig.BindMaterial = &BindMaterial{InstanceMaterials: []InstanceMaterial{
				{Symbol: "defaultMaterial", Target: "#" + MaterialId(iMat)},
			}}
		}
		node.InstanceGeometries = append(node.InstanceGeometries, ig)
	}
	for _, child := range n.Children {
		node.Nodes = append(node.Nodes, buildNode(sc, child, joint || isSkeletonRoot))
	}
	return node
}
