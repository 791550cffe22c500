// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Arc is a command-line client for the Phabricator code review system.
// See "arc help" for details.
package main

import (
	"os"

	"github.com/wangkun611/arcanist/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
