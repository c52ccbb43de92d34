// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for the EDMS backup and restore tooling.
//
// Usage:
//
//	edms backup [output-file]
//	edms restore <package-file>
//	edms status <session-id>
//
// See --help for the full command set.
package main

import (
	"log"
	"os"

	"github.com/jinkaiteo/edms-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("edms: %v", err)
		os.Exit(1)
	}
}
