// The main package for the storylint executable.
package main

import (
	"github.com/JakeFAU/storylint/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
