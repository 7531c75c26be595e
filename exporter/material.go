package exporter

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/model"
	"github.com/mogaika/scene_exporter/scene"
)

const DEFAULT_MATERIAL_NAME = "New Material"

var textureTypeMap = map[model.TextureType]scene.TextureType{
	model.TextureDiffuse:  scene.TextureTypeDiffuse,
	model.TextureAO:       scene.TextureTypeAmbient,
	model.TextureNormal:   scene.TextureTypeNormals,
	model.TextureLight:    scene.TextureTypeLightmap,
	model.TextureEmission: scene.TextureTypeEmissive,
	model.TextureSpecular: scene.TextureTypeSpecular,
}

func convertTextureType(t model.TextureType) scene.TextureType {
	if st, ok := textureTypeMap[t]; ok {
		return st
	}
	return scene.TextureTypeUnknown
}

func convertWrapMode(w model.WrapMode) scene.WrapMode {
	switch w {
	case model.WrapMirror:
		return scene.WrapModeMirror
	case model.WrapClamp:
		return scene.WrapModeClamp
	default:
		return scene.WrapModeWrap
	}
}

// MaterialConverter maps generic materials onto scene materials. Texture
// slots only reference files that already exist in DestDir.
type MaterialConverter struct {
	DestDir    string
	TextureExt string
	Log        *zap.Logger
}

func (c *MaterialConverter) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *MaterialConverter) ext() string {
	if c.TextureExt == "" {
		return ".png"
	}
	return c.TextureExt
}

// TexturePath is where the texture writer puts texture name.
func (c *MaterialConverter) TexturePath(name string) string {
	return filepath.Join(c.DestDir, name+c.ext())
}

func (c *MaterialConverter) Convert(materials []*model.Material) []*scene.Material {
	if len(materials) == 0 {
		return []*scene.Material{{Name: DEFAULT_MATERIAL_NAME}}
	}

	result := make([]*scene.Material, 0, len(materials))
	for _, mat := range materials {
		sm := &scene.Material{Name: mat.Name}
		for _, tm := range mat.TextureMaps {
			slot, err := c.convertSlot(tm)
			if err != nil {
				c.log().Debug("texture slot skipped",
					zap.String("material", mat.Name), zap.String("texture", tm.Name), zap.Error(err))
				continue
			}
			sm.Textures = append(sm.Textures, slot)
		}
		result = append(result, sm)
	}
	return result
}

func (c *MaterialConverter) convertSlot(tm model.TextureMap) (scene.TextureSlot, error) {
	path := c.TexturePath(tm.Name)
	if _, err := os.Stat(path); err != nil {
		return scene.TextureSlot{}, errors.Wrapf(ErrMissingTexture, "%q: %v", path, err)
	}
	return scene.TextureSlot{
		Path:    path,
		Type:    convertTextureType(tm.Type),
		UVIndex: 0,
		Blend:   1,
		WrapS:   convertWrapMode(tm.WrapS),
		WrapT:   convertWrapMode(tm.WrapT),
	}, nil
}
