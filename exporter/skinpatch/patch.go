// Package skinpatch rewrites a collada document written by the scene encoder:
// geometry elements get stable ids and real mesh names back, and skin
// controllers can be injected.
package skinpatch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/scene_exporter/scene"
)

var ErrPatchIO = errors.New("patch io failure")

// PatchError matches ErrPatchIO and unwraps to the underlying failure.
type PatchError struct {
	Op   string
	Path string
	Err  error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("%v: %s %q: %v", ErrPatchIO, e.Op, e.Path, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

func (e *PatchError) Is(target error) bool { return target == ErrPatchIO }

func patchError(op, path string, err error) error {
	return errors.WithStack(&PatchError{Op: op, Path: path, Err: err})
}

var replaceFile = os.Rename

type Options struct {
	EmitControllers     bool
	RewriteInstanceRefs bool
	Log                 *zap.Logger
}

// Patch rewrites path in place. The document is streamed into a temp file in
// the same directory which then replaces the original. On any failure the
// temp file is removed and the original is left as it was.
func Patch(path string, names []string, meshes []*scene.Mesh, opts Options) (err error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	src, err := os.Open(path)
	if err != nil {
		return patchError("open", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return patchError("stat", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return patchError("create temp", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	t := &Transducer{
		Names:               names,
		RewriteInstanceRefs: opts.RewriteInstanceRefs,
	}
	if opts.EmitControllers {
		t.Controllers = func() []string { return ControllerLines(meshes, names) }
	}

	st, err := Transform(src, tmp, t)
	if err != nil {
		return patchError("rewrite", path, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return patchError("chmod", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return patchError("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return patchError("close", tmpName, err)
	}
	src.Close()
	if err := replaceFile(tmpName, path); err != nil {
		return patchError("replace", path, err)
	}

	if st.Geometry != len(names) {
		log.Warn("geometry count differs from mesh count",
			zap.String("path", path), zap.Int("geometries", st.Geometry), zap.Int("meshes", len(names)))
	}
	log.Debug("skin patched", zap.String("path", path), zap.Int("geometries", st.Geometry))
	return nil
}

// Transform streams r through the transducer into w line by line.
func Transform(r io.Reader, w io.Writer, t *Transducer) (State, error) {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	st := NewState()

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return st, readErr
		}
		if line != "" || readErr == nil {
			var out []string
			out, st = t.Step(strings.TrimRight(line, "\r\n"), st)
			for _, l := range out {
				if _, err := bw.WriteString(l); err != nil {
					return st, err
				}
				if err := bw.WriteByte('\n'); err != nil {
					return st, err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	return st, bw.Flush()
}
