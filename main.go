// The main package for the linkenricher executable.
package main

import (
	"github.com/JakeFAU/profile-link-enricher/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
