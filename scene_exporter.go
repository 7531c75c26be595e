package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/config"
	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/encoders/tds"
	"github.com/mogaika/scene_exporter/exporter"
	"github.com/mogaika/scene_exporter/logger"
	"github.com/mogaika/scene_exporter/status"
	"github.com/mogaika/scene_exporter/web"

	_ "github.com/mogaika/scene_exporter/encoders/collada"
	_ "github.com/mogaika/scene_exporter/encoders/fbx"
	_ "github.com/mogaika/scene_exporter/encoders/gltf"
	_ "github.com/mogaika/scene_exporter/encoders/obj"
	_ "github.com/mogaika/scene_exporter/encoders/ply"
)

func main() {
	flags := config.BindFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(cfg.Logging)
	defer log.Sync()

	encoders.SetEncoder(encoders.FORMAT_3DS, tds.Encoder{Charmap: cfg.Charmap()})

	hub := status.NewHub(log)
	defer hub.Close()

	exp := exporter.New(cfg, log)
	exp.SetProgressReporter(hub)
	exp.SetNotifier(hub)

	if err := web.NewServer(cfg, log, exp, hub).ListenAndServe(); err != nil {
		log.Fatal("Server stopped", zap.Error(err))
	}
}
