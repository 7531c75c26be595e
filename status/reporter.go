package status

import (
	"go.uber.org/zap"
)

// Reporter logs progress and completion, used where nobody listens on a
// websocket.
type Reporter struct {
	Log *zap.Logger
}

func (r Reporter) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r Reporter) Progress(stage string, percent int) {
	r.log().Info(stage, zap.Int("percent", percent))
}

func (r Reporter) Notify(success bool, path string) {
	if success {
		r.log().Info("export finished", zap.String("path", path))
	} else {
		r.log().Error("export failed", zap.String("path", path))
	}
}
