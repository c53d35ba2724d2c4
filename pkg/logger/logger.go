// Package logger configures the process-wide zap logger from a small,
// flag-friendly Config.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	DevMode bool
	Level   zapcore.Level
	Mode    FileMode
	Path    string
}

// New opens the log sink named by conf.Path and builds a logger over it.
// An empty path means stderr.
func New(conf Config) (*zap.Logger, error) {
	path := conf.Path
	if path == "" {
		path = "stderr"
	}
	w, err := OpenFile(path, conf.Mode)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	var opts []zap.Option
	if conf.DevMode {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		opts = append(opts, zap.Development())
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	core := zapcore.NewCore(enc, w, conf.Level)
	return zap.New(core, opts...), nil
}
