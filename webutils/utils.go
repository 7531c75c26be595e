package webutils

import (
	"archive/zip"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) error {
	WriteFileHeaders(w, name)
	_, err := io.Copy(w, in)
	return err
}

func WriteJson(w http.ResponseWriter, data interface{}) error {
	res, err := json.Marshal(data)
	if err != nil {
		return WriteError(w, http.StatusInternalServerError, err)
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(res)
	return err
}

func WriteError(w http.ResponseWriter, code int, err error) error {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		return errors.Wrapf(merr, "Error marshaling error '%v'", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, werr := w.Write(data)
	return werr
}

// SaveFormFile copies multipart file key into dir under its base name and
// returns the written path.
func SaveFormFile(r *http.Request, key, dir string) (string, error) {
	f, header, err := r.FormFile(key)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to get file %q", key)
	}
	defer f.Close()

	path := filepath.Join(dir, filepath.Base(header.Filename))
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to create %q", path)
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		return "", errors.Wrapf(err, "Failed to write %q", path)
	}
	return path, errors.Wrapf(out.Close(), "Failed to close %q", path)
}

// WriteZip streams every regular file of dir as a flat zip archive.
func WriteZip(w http.ResponseWriter, dir, name string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "Can't list %q", dir)
	}

	WriteFileHeaders(w, name)
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		fw, err := zw.Create(entry.Name())
		if err != nil {
			return errors.Wrapf(err, "Can't create zip for %q", entry.Name())
		}
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return errors.Wrapf(err, "Can't open %q", entry.Name())
		}
		_, err = io.Copy(fw, f)
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "Can't write zip for %q", entry.Name())
		}
	}
	return zw.Close()
}
