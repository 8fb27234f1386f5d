// Copyright 2022 MatrixOrigin.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Adjust returns the global logger if logger is nil
func Adjust(logger *zap.Logger, options ...zap.Option) *zap.Logger {
	if logger != nil {
		return logger
	}
	if len(options) == 0 {
		return Logger()
	}
	return Logger().WithOptions(options...)
}

// GetDefaultZapLoggerWithLevel get default zap logger
func GetDefaultZapLoggerWithLevel(level zapcore.Level, options ...zap.Option) *zap.Logger {
	options = append(options, zap.AddStacktrace(zapcore.FatalLevel), zap.AddCaller())
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	l, err := cfg.Build(options...)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// GetDefaultZapLogger get default zap logger
func GetDefaultZapLogger(options ...zap.Option) *zap.Logger {
	return GetDefaultZapLoggerWithLevel(zapcore.InfoLevel, options...)
}

// GetZapLogger returns a logger with the named level, e.g. "debug". Unknown
// levels fall back to info.
func GetZapLogger(level string, options ...zap.Option) *zap.Logger {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = zapcore.InfoLevel
	}
	return GetDefaultZapLoggerWithLevel(l, options...)
}
