package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/config"
	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/encoders/tds"
	"github.com/mogaika/scene_exporter/exporter"
	"github.com/mogaika/scene_exporter/logger"
	"github.com/mogaika/scene_exporter/model"
	"github.com/mogaika/scene_exporter/status"
	"github.com/mogaika/scene_exporter/utils"

	_ "github.com/mogaika/scene_exporter/encoders/collada"
	_ "github.com/mogaika/scene_exporter/encoders/fbx"
	_ "github.com/mogaika/scene_exporter/encoders/gltf"
	_ "github.com/mogaika/scene_exporter/encoders/obj"
	_ "github.com/mogaika/scene_exporter/encoders/ply"
)

func main() {
	fs := flag.CommandLine
	flags := config.BindFlags(fs)
	var in, out, object string
	var dump bool
	fs.StringVar(&in, "in", "", "Path to yaml model description")
	fs.StringVar(&out, "out", "", "Output scene path, format picked by extension (.dae .obj .3ds .ply .gltf .glb .fbx)")
	fs.StringVar(&object, "object", "", "Export only the mesh with this name, without skeleton")
	fs.BoolVar(&dump, "dump", false, "Print parsed model and exit")
	flag.Parse()

	if flags.Encoding == "list" {
		fmt.Println(strings.Join(config.ListEncodings(), "\n"))
		return
	}

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(cfg.Logging)
	defer log.Sync()

	if in == "" {
		flag.PrintDefaults()
		return
	}

	mdl, err := model.LoadDescriptionFile(in)
	if err != nil {
		log.Fatal("Can't load model", zap.String("path", in), zap.Error(err))
	}
	if dump {
		utils.Dump(mdl)
		return
	}

	if out == "" {
		name := mdl.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		}
		out = name + exporter.FileExtension(encoders.FORMAT_COLLADA)
	}

	encoders.SetEncoder(encoders.FORMAT_3DS, tds.Encoder{Charmap: cfg.Charmap()})

	exp := exporter.New(cfg, log)
	reporter := status.Reporter{Log: log.Named("status")}
	exp.SetProgressReporter(reporter)
	exp.SetNotifier(reporter)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var result *exporter.Result
	if object != "" {
		var mesh *model.Mesh
		for _, m := range mdl.Meshes {
			if m.Name == object {
				mesh = m
				break
			}
		}
		if mesh == nil {
			log.Fatal("Mesh not found", zap.String("name", object))
		}
		result, err = exp.ExportObject(ctx, mesh, out)
	} else {
		result, err = exp.Export(ctx, exporter.Request{
			Meshes:      mdl.Meshes,
			Materials:   mdl.Materials,
			Textures:    mdl.Textures,
			Skeleton:    mdl.Skeleton,
			Remap:       mdl.Remap,
			Destination: out,
		})
	}
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}

	log.Info("Done",
		zap.String("path", result.Path),
		zap.String("format", string(result.Format)),
		zap.Bool("patched", result.Patched))
}
