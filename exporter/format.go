package exporter

import (
	"path/filepath"
	"strings"

	"github.com/mogaika/scene_exporter/encoders"
)

// FormatForPath picks the scene format from the destination extension.
// Unknown extensions fall back to collada.
func FormatForPath(path string) encoders.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return encoders.FORMAT_OBJ
	case ".3ds":
		return encoders.FORMAT_3DS
	case ".ply":
		return encoders.FORMAT_PLY
	case ".gltf":
		return encoders.FORMAT_GLTF
	case ".glb":
		return encoders.FORMAT_GLB
	case ".fbx":
		return encoders.FORMAT_FBX
	default:
		return encoders.FORMAT_COLLADA
	}
}

// COLLADA_PATCH_EXT is the only extension whose output gets skin patched,
// compared case sensitively.
const COLLADA_PATCH_EXT = ".dae"

func NeedsSkinPatch(path string) bool {
	return filepath.Ext(path) == COLLADA_PATCH_EXT
}

// FileExtension is the extension used when a format is requested by id.
func FileExtension(format encoders.Format) string {
	switch format {
	case encoders.FORMAT_COLLADA:
		return COLLADA_PATCH_EXT
	default:
		return "." + string(format)
	}
}
