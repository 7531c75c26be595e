package config

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// FindCharmap looks up a single byte charmap by its display name.
func FindCharmap(name string) (*charmap.Charmap, error) {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				return cm, nil
			}
		}
	}
	return nil, errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

// Charmap of cfg.Encoding, Windows 1252 when unset or unknown.
func (cfg *Config) Charmap() *charmap.Charmap {
	if cm, err := FindCharmap(cfg.Encoding); err == nil {
		return cm
	}
	return charmap.Windows1252
}

// EncodeName converts a utf8 name into the configured single byte encoding,
// unmappable runes become '?'.
func EncodeName(cm *charmap.Charmap, name string) []byte {
	out := make([]byte, 0, len(name))
	for _, r := range name {
		if b, ok := cm.EncodeRune(r); ok {
			out = append(out, b)
		} else {
			out = append(out, '?')
		}
	}
	return out
}
