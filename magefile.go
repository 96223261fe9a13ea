//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

// Build compiles both executables into ./bin
func Build() error {
	mg.Deps(BuildAnalyzer)
	mg.Deps(BuildLimits)
	fmt.Println("Compilation finished")
	return nil
}

func BuildAnalyzer() error {
	fmt.Println("Building analyzer executable...")
	return goCommand("build", "-o", "./bin/analyzer", "./analyzer")
}

func BuildLimits() error {
	fmt.Println("Building limits executable...")
	return goCommand("build", "-o", "./bin/limits", "./limits")
}

// Test runs every package test. HDF5 needs cgo like the executables.
func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./...")
}

// goCommand runs the go tool with cgo enabled and the HDF5 flags of the
// environment.
func goCommand(args ...string) error {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
