package web

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/config"
	"github.com/mogaika/scene_exporter/exporter"
	"github.com/mogaika/scene_exporter/status"
)

// max in-memory part of multipart uploads, the rest spills to temp files
const MAX_UPLOAD_MEMORY = 32 << 20

type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	exporter *exporter.Exporter
	hub      *status.Hub
}

func NewServer(cfg *config.Config, log *zap.Logger, exp *exporter.Exporter, hub *status.Hub) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cfg: cfg, log: log.Named("web"), exporter: exp, hub: hub}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/formats", s.HandlerFormats).Methods(http.MethodGet)
	r.HandleFunc("/export/{format}", s.HandlerExport).Methods(http.MethodPost)
	if s.hub != nil {
		r.HandleFunc("/status", s.hub.ServeWS)
	}
	return r
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	h = handlers.LoggingHandler(os.Stdout, h)
	return h
}

func (s *Server) ListenAndServe() error {
	s.log.Info("Starting server", zap.String("addr", s.cfg.Web.Addr))
	return http.ListenAndServe(s.cfg.Web.Addr, s.Handler())
}
