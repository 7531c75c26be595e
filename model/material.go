package model

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type TextureType int

const (
	TextureUnknown TextureType = iota
	TextureDiffuse
	TextureAO
	TextureNormal
	TextureLight
	TextureEmission
	TextureSpecular
	TextureMetalness
	TextureRoughness
	TextureShadow
)

var textureTypeNames = map[TextureType]string{
	TextureUnknown:   "unknown",
	TextureDiffuse:   "diffuse",
	TextureAO:        "ao",
	TextureNormal:    "normal",
	TextureLight:     "light",
	TextureEmission:  "emission",
	TextureSpecular:  "specular",
	TextureMetalness: "metalness",
	TextureRoughness: "roughness",
	TextureShadow:    "shadow",
}

func (t TextureType) String() string {
	if name, ok := textureTypeNames[t]; ok {
		return name
	}
	return textureTypeNames[TextureUnknown]
}

func ParseTextureType(s string) (TextureType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range textureTypeNames {
		if name == s {
			return t, nil
		}
	}
	return TextureUnknown, errors.Errorf("Unknown texture type %q", s)
}

func (t *TextureType) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseTextureType(value.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TextureType) MarshalYAML() (interface{}, error) { return t.String(), nil }

type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapMirror
	WrapClamp
)

func (w WrapMode) String() string {
	switch w {
	case WrapMirror:
		return "mirror"
	case WrapClamp:
		return "clamp"
	default:
		return "repeat"
	}
}

func ParseWrapMode(s string) (WrapMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "repeat":
		return WrapRepeat, nil
	case "mirror":
		return WrapMirror, nil
	case "clamp":
		return WrapClamp, nil
	}
	return WrapRepeat, errors.Errorf("Unknown wrap mode %q", s)
}

func (w *WrapMode) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseWrapMode(value.Value)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

func (w WrapMode) MarshalYAML() (interface{}, error) { return w.String(), nil }

// TextureMap references a Texture by name from a material slot.
type TextureMap struct {
	Name  string      `yaml:"name"`
	Type  TextureType `yaml:"type"`
	WrapS WrapMode    `yaml:"wrap_s"`
	WrapT WrapMode    `yaml:"wrap_t"`
}

type Material struct {
	Name        string       `yaml:"name"`
	TextureMaps []TextureMap `yaml:"textures"`
}
