package fbx

import (
	"io"
	"path/filepath"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const CREATOR = "FBX SDK/FBX Plugins version 2013.3 build=20121223"
const APPLICATION_VENDOR = "mogaika"
const APPLICATION_NAME = "scene_exporter"
const APPLICATION_VERSION = "1.0"
const DATE_TIME_GMT = "01/01/1970 00:00:00.000"
const CREATION_TIME = "1970-01-01 10:00:00:000"

var FILE_ID []byte = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

// Builder keeps the fbx 7.4 document skeleton with shared Objects and
// Connections sections. Ids are deterministic for a given build order.
type Builder struct {
	f      *fbx.FBX
	lastId int64

	objects     *fbx.Node
	connections *fbx.Node
}

func NewBuilder(filename string) *Builder {
	b := &Builder{
		lastId:      1000000,
		f:           fbx.NewFBX(7400),
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
	}
	b.createHeaders(filename)
	return b
}

// object types the encoder emits, in Definitions order
var definitionTypes = []string{"Model", "NodeAttribute", "Geometry", "Material", "Texture", "Video", "Deformer", "Pose"}

func (b *Builder) definitions() *fbx.Node {
	defs := bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(1),
		bfbx73.ObjectType("GlobalSettings").AddNodes(bfbx73.Count(1)),
	)
	for _, name := range definitionTypes {
		ot := bfbx73.ObjectType(name).AddNodes(bfbx73.Count(0))
		if name == "Model" {
			ot.AddNodes(bfbx73.PropertyTemplate("FbxNode").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("Show", "bool", "", "", int32(1)),
					bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
				),
			))
		}
		defs.AddNode(ot)
	}
	return defs
}

func axis(name string, value int32) *fbx.Node {
	return bfbx73.P(name, "int", "Integer", "", value)
}

func (b *Builder) createHeaders(filename string) {
	app := func(section string) []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P(section, "Compound", "", ""),
			bfbx73.P(section+"|ApplicationVendor", "KString", "", "", APPLICATION_VENDOR),
			bfbx73.P(section+"|ApplicationName", "KString", "", "", APPLICATION_NAME),
			bfbx73.P(section+"|ApplicationVersion", "KString", "", "", APPLICATION_VERSION),
			bfbx73.P(section+"|DateTime_GMT", "DateTime", "", "", DATE_TIME_GMT),
		}
	}
	sceneInfo := bfbx73.Properties70().AddNodes(bfbx73.P("DocumentUrl", "KString", "Url", "", filename))
	sceneInfo.AddNodes(app("Original")...)
	sceneInfo.AddNodes(bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(filename)))
	sceneInfo.AddNodes(app("LastSaved")...)

	b.Root().AddNodes(
		bfbx73.FBXHeaderExtension().AddNodes(
			bfbx73.FBXHeaderVersion(1003),
			bfbx73.FBXVersion(7400),
			bfbx73.EncryptionType(0),
			bfbx73.CreationTimeStamp().AddNodes(
				bfbx73.Version(1000),
				bfbx73.Year(1970),
				bfbx73.Month(1),
				bfbx73.Day(1),
			),
			bfbx73.Creator(CREATOR),
			bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
				bfbx73.Type("UserData"),
				bfbx73.Version(100),
				sceneInfo,
			),
		),
		bfbx73.FileId(FILE_ID),
		bfbx73.CreationTime(CREATION_TIME),
		bfbx73.Creator(CREATOR),
		// y up, z front, right handed
		bfbx73.GlobalSettings().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Properties70().AddNodes(
				axis("UpAxis", 1), axis("UpAxisSign", 1),
				axis("FrontAxis", 2), axis("FrontAxisSign", 1),
				axis("CoordAxis", 0), axis("CoordAxisSign", 1),
				bfbx73.P("UnitScaleFactor", "double", "Number", "", float64(1)),
			),
		),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(b.GenerateId(), "Scene", "Scene").AddNodes(
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		b.definitions(),
		b.objects,
		b.connections,
		bfbx73.Takes().AddNodes(bfbx73.Current("")),
	)
}

// countDefinitions refreshes per type object counters, unknown types get
// their own ObjectType entry.
func (b *Builder) countDefinitions() {
	counts := make(map[string]int32)
	order := make([]string, 0)
	for _, object := range b.objects.Nodes {
		if _, ex := counts[object.Name]; !ex {
			order = append(order, object.Name)
		}
		counts[object.Name]++
	}

	definitions := b.Root().GetNode("Definitions")
	totalCount := int32(1) // 1 for GlobalSettings

	for _, name := range order {
		count := counts[name]
		totalCount += count

		var objectType *fbx.Node
		for _, ot := range definitions.GetNodes("ObjectType") {
			if ot.Properties[0].(string) == name {
				objectType = ot
			}
		}
		if objectType == nil {
			objectType = bfbx73.ObjectType(name)
			definitions.AddNode(objectType)
		}

		objectType.GetOrAddNode(bfbx73.Count(0)).Properties[0] = count
	}

	definitions.GetOrAddNode(bfbx73.Count(0)).Properties[0] = totalCount
}

func (b *Builder) Root() *fbx.Node {
	return &b.f.Root
}

func (b *Builder) GenerateId() int64 {
	b.lastId++
	return b.lastId
}

func (b *Builder) AddObjects(nodes ...*fbx.Node)     { b.objects.AddNodes(nodes...) }
func (b *Builder) AddConnections(nodes ...*fbx.Node) { b.connections.AddNodes(nodes...) }

// Objects returns every object node named name, in insertion order.
func (b *Builder) Objects(name string) []*fbx.Node {
	return b.objects.GetNodes(name)
}

func (b *Builder) Connections() []*fbx.Node {
	return b.connections.Nodes
}

// Write serializes the document, the binary writer patches node offsets
// so w has to be seekable.
func (b *Builder) Write(w io.WriteSeeker) error {
	b.countDefinitions()
	if err := fbx.Write(w, b.f); err != nil {
		return errors.Wrapf(err, "Fbx writing failed")
	}
	return nil
}
