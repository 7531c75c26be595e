package config

import (
	"flag"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load returns defaults merged with the YAML file at path. Empty path
// returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read config %q", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse config %q", path)
	}
	return cfg, nil
}

func (cfg *Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "Failed to write config %q", path)
}

// Flags are command line overrides, zero values keep the loaded config.
type Flags struct {
	Config        string
	Debug         bool
	LogFile       string
	TextureFormat string
	TextureMax    int
	NoSkinPatch   bool
	Controllers   bool
	Encoding      string
	Addr          string
}

func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log", "", "Log file path")
	fs.StringVar(&f.TextureFormat, "texfmt", "", "Texture file extension (.png, .bmp, .tga, .webp)")
	fs.IntVar(&f.TextureMax, "texmax", 0, "Downscale textures larger than this")
	fs.BoolVar(&f.NoSkinPatch, "noskinpatch", false, "Do not patch collada documents")
	fs.BoolVar(&f.Controllers, "controllers", false, "Write skin controllers into collada documents")
	fs.StringVar(&f.Encoding, "charmap", "", "Name encoding, run with -charmap=list to list")
	fs.StringVar(&f.Addr, "i", "", "Address of server")
	return f
}

func (f *Flags) Apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.File = f.LogFile
	}
	if f.TextureFormat != "" {
		cfg.Textures.Format = f.TextureFormat
	}
	if f.TextureMax > 0 {
		cfg.Textures.MaxSize = f.TextureMax
	}
	if f.NoSkinPatch {
		cfg.Skin.Patch = false
	}
	if f.Controllers {
		cfg.Skin.EmitControllers = true
	}
	if f.Encoding != "" {
		cfg.Encoding = f.Encoding
	}
	if f.Addr != "" {
		cfg.Web.Addr = f.Addr
	}
}

// LoadWithFlags applies defaults < file < flags.
func LoadWithFlags(f *Flags) (*Config, error) {
	cfg, err := Load(f.Config)
	if err != nil {
		return nil, err
	}
	f.Apply(cfg)
	return cfg, nil
}
