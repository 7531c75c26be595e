// Package config holds exporter settings. Values come from defaults, then a
// YAML file, then command line flags.
package config

type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Textures TexturesConfig `yaml:"textures"`
	Skin     SkinConfig     `yaml:"skin"`
	Encoding string         `yaml:"encoding"`
	Web      WebConfig      `yaml:"web"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type TexturesConfig struct {
	// extension including dot, selects the image encoder
	Format  string `yaml:"format"`
	MaxSize int    `yaml:"max_size"` // 0 keeps original size
	Workers int    `yaml:"workers"`  // 0 means NumCPU-1
}

type SkinConfig struct {
	Patch               bool `yaml:"patch"`
	EmitControllers     bool `yaml:"emit_controllers"`
	RewriteInstanceRefs bool `yaml:"rewrite_instance_refs"`
	MaxSkeletonDepth    int  `yaml:"max_skeleton_depth"`
}

type WebConfig struct {
	Addr    string `yaml:"addr"`
	WorkDir string `yaml:"work_dir"`
}

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Textures: TexturesConfig{
			Format: ".png",
		},
		Skin: SkinConfig{
			Patch:               true,
			EmitControllers:     false,
			RewriteInstanceRefs: true,
			MaxSkeletonDepth:    256,
		},
		Encoding: "Windows 1252",
		Web: WebConfig{
			Addr: ":8000",
		},
	}
}
