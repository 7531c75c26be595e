package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/encoders"
	"github.com/mogaika/scene_exporter/exporter"
	"github.com/mogaika/scene_exporter/model"
	"github.com/mogaika/scene_exporter/webutils"
)

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.log.Warn("request failed", zap.Int("code", code), zap.Error(err))
	if werr := webutils.WriteError(w, code, err); werr != nil {
		s.log.Error("error response", zap.Error(werr))
	}
}

func (s *Server) HandlerFormats(w http.ResponseWriter, r *http.Request) {
	if err := webutils.WriteJson(w, encoders.Formats()); err != nil {
		s.log.Error("formats response", zap.Error(err))
	}
}

func (s *Server) workDir() (string, error) {
	root := s.cfg.Web.WorkDir
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(filepath.Join(dir, "out"), 0755); err != nil {
		return "", errors.Wrapf(err, "Can't create work dir")
	}
	return dir, nil
}

// HandlerExport takes a multipart form with the yaml model description in
// "model" and any number of "texture" files it references, exports it in
// the requested format and answers with a zip of the output directory.
func (s *Server) HandlerExport(w http.ResponseWriter, r *http.Request) {
	format := encoders.Format(strings.ToLower(mux.Vars(r)["format"]))
	if _, err := encoders.GetEncoder(format); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := r.ParseMultipartForm(MAX_UPLOAD_MEMORY); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrapf(err, "Failed to parse form"))
		return
	}

	dir, err := s.workDir()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(dir)

	if r.MultipartForm != nil {
		for i := range r.MultipartForm.File["texture"] {
			if err := saveTexture(r, i, dir); err != nil {
				s.writeError(w, http.StatusInternalServerError, err)
				return
			}
		}
	}

	descPath, err := webutils.SaveFormFile(r, "model", dir)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	mdl, err := model.LoadConfinedDescriptionFile(descPath)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	name := mdl.Name
	if name == "" {
		name = "model"
	}
	destination := filepath.Join(dir, "out", filepath.Base(name)+exporter.FileExtension(format))

	s.log.Info("export requested", zap.String("format", string(format)), zap.String("model", name))
	result, err := s.exporter.Export(r.Context(), exporter.Request{
		Meshes:      mdl.Meshes,
		Materials:   mdl.Materials,
		Textures:    mdl.Textures,
		Skeleton:    mdl.Skeleton,
		Remap:       mdl.Remap,
		Destination: destination,
	})
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if result.TextureErr != nil {
		s.log.Warn("textures skipped", zap.Error(result.TextureErr))
	}

	if err := webutils.WriteZip(w, filepath.Dir(destination), name+".zip"); err != nil {
		s.log.Error("zip response", zap.Error(err))
	}
}

func saveTexture(r *http.Request, index int, dir string) error {
	header := r.MultipartForm.File["texture"][index]
	f, err := header.Open()
	if err != nil {
		return errors.Wrapf(err, "Failed to open texture %q", header.Filename)
	}
	defer f.Close()

	path := filepath.Join(dir, filepath.Base(header.Filename))
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	if _, err := out.ReadFrom(f); err != nil {
		out.Close()
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	return out.Close()
}
