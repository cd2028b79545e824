//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Serve builds the binary and runs the backend on :3000 with the sqlite store.
func Serve() error {
	mg.Deps(Init, Build)
	return sh.RunV(filepath.Join(binDir, binName), "serve")
}

// Research builds the binary and researches the given comma-separated names
// against a running backend.
func Research(names string) error {
	mg.Deps(Build)
	args := append([]string{"research"}, splitNames(names)...)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}
