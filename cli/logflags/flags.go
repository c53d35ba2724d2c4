// Package logflags is the flag bundle wiring logger configuration into a
// command's flag set.
package logflags

import (
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tabxdata/tabx/pkg/logger"
)

type Flags struct {
	Config logger.Config
}

func (f *Flags) SetFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&f.Config.DevMode, "log.devmode", false, "development mode (if enabled dpanic level logs will cause a panic)")
	f.Config.Level = zap.InfoLevel
	fs.Var(levelFlag{&f.Config.Level}, "log.level", "logging level")
	fs.StringVar(&f.Config.Path, "log.path", "stderr", "path to send logs (values: stderr, stdout, path in file system)")
	f.Config.Mode = logger.FileModeTruncate
	fs.Var(&f.Config.Mode, "log.filemode", "logger file write mode (values: append, truncate, rotate)")
}

func (f *Flags) Open() (*zap.Logger, error) {
	return logger.New(f.Config)
}

// levelFlag adapts zapcore.Level to the pflag.Value interface.
type levelFlag struct {
	level *zapcore.Level
}

func (v levelFlag) Set(s string) error { return v.level.Set(s) }
func (v levelFlag) String() string     { return v.level.String() }
func (v levelFlag) Type() string       { return "level" }
