//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the engine in a window on the best Vulkan device.
func (Run) Engine() error {
	return run()
}

// Runs the engine in a window on a CPU Vulkan device.
func (Run) Warp() error {
	return run("--warp")
}

// Renders 300 frames on the software device without opening a window.
func (Run) Headless() error {
	return run("--headless", "--frames", "300", "--log-level", "debug")
}

func run(flags ...string) error {
	fmt.Println("Run engine...")
	_, err := executeCmd("go", withArgs(append([]string{"run", "."}, flags...)...), withStream())
	return err
}
