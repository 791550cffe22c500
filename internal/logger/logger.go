// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger provides the diagnostic log behind the --trace flag.
// The log carries subprocess invocations, Conduit calls, and swallowed
// advisory errors. User-facing output never goes through it.
package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.New(io.Discard)

// Init routes trace output to w. With trace false the log is discarded.
func Init(w io.Writer, trace bool) {
	if !trace {
		log = zerolog.New(io.Discard)
		return
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	log = zerolog.New(cw).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

func Debug() *zerolog.Event { return log.Debug() }

func Warn() *zerolog.Event { return log.Warn() }
