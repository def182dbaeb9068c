//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Viewer runs the scene viewer on the built-in showcase.
func (Run) Viewer() error {
	fmt.Println("Run viewer...")
	_, err := executeCmd("go", withArgs("run", "./cmd/prism", "-windowed"), withStream())
	return err
}

// Headless renders a few hybrid frames with the software device and
// captures the last one into captures/.
func (Run) Headless() error {
	_, err := executeCmd("go", withArgs("run", "./cmd/prism", "-headless", "-mode", "hybrid", "-frames", "3", "-capture", "captures"), withStream())
	return err
}

// Pathtrace renders the path-traced showcase to image.png.
func (Run) Pathtrace() error {
	fmt.Println("Run path tracer...")
	_, err := executeCmd("go", withArgs("run", "./cmd/pathtrace", "-o", "image.png"), withStream())
	return err
}
