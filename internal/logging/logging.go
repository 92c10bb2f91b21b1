// Package logging builds the station logger: structured JSON in app.json,
// a readable copy in app.txt, and warnings on the console. Both files
// rotate by size.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	JSONFile = "app.json"
	TextFile = "app.txt"
)

const (
	defaultMaxSizeMB  = 1
	defaultMaxBackups = 5
)

// Rotation limits each log file. Zero size or backups select 1 MB and 5.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options configures New.
type Options struct {
	// Dir receives app.json and app.txt. Empty disables file logging.
	Dir string
	// Verbose lowers the file level to debug.
	Verbose bool
	// Console receives warnings and errors. Nil disables console output.
	Console  io.Writer
	Rotation Rotation
}

// New returns a logger and a close func that syncs and closes log files.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var (
		cores []zapcore.Core
		files []*lumberjack.Logger
	)

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		jsonFile := rotating(filepath.Join(opts.Dir, JSONFile), opts.Rotation)
		textFile := rotating(filepath.Join(opts.Dir, TextFile), opts.Rotation)
		files = append(files, jsonFile, textFile)

		cores = append(cores,
			zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(jsonFile), level),
			zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(textFile), level),
		)
	}

	if opts.Console != nil {
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.AddSync(opts.Console),
			zapcore.WarnLevel,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() {}, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, func() {
		_ = logger.Sync()
		for _, f := range files {
			_ = f.Close()
		}
	}, nil
}

func rotating(path string, r Rotation) *lumberjack.Logger {
	if r.MaxSizeMB <= 0 {
		r.MaxSizeMB = defaultMaxSizeMB
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = defaultMaxBackups
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
		LocalTime:  true,
	}
}
