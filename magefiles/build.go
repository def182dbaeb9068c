//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Viewer builds the windowed scene viewer into bin/.
func (Build) Viewer() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/prism", "./cmd/prism"), withStream())
	return err
}

// Pathtrace builds the CPU path tracer into bin/.
func (Build) Pathtrace() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/pathtrace", "./cmd/pathtrace"), withStream())
	return err
}

// All builds every command.
func (Build) All() {
	mg.Deps(Build.Viewer, Build.Pathtrace)
}

type Test mg.Namespace

// All runs the unit tests with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Tidy runs go mod tidy and go vet.
func (Test) Tidy() error {
	if _, err := executeCmd("go", withArgs("mod", "tidy")); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}
