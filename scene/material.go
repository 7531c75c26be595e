package scene

type TextureType int

const (
	TextureTypeUnknown TextureType = iota
	TextureTypeDiffuse
	TextureTypeAmbient
	TextureTypeNormals
	TextureTypeLightmap
	TextureTypeEmissive
	TextureTypeSpecular
)

func (t TextureType) String() string {
	switch t {
	case TextureTypeDiffuse:
		return "diffuse"
	case TextureTypeAmbient:
		return "ambient"
	case TextureTypeNormals:
		return "normals"
	case TextureTypeLightmap:
		return "lightmap"
	case TextureTypeEmissive:
		return "emissive"
	case TextureTypeSpecular:
		return "specular"
	default:
		return "unknown"
	}
}

type WrapMode int

const (
	WrapModeWrap WrapMode = iota
	WrapModeMirror
	WrapModeClamp
)

type TextureSlot struct {
	Path    string
	Type    TextureType
	UVIndex int
	Blend   float32
	WrapS   WrapMode
	WrapT   WrapMode
}

type Material struct {
	Name     string
	Textures []TextureSlot
}

// Texture returns the first slot of type t.
func (m *Material) Texture(t TextureType) (TextureSlot, bool) {
	for _, slot := range m.Textures {
		if slot.Type == t {
			return slot, true
		}
	}
	return TextureSlot{}, false
}
