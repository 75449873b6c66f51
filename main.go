// The main package for the douban-harvester executable.
package main

import (
	"github.com/JakeFAU/douban-harvester/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
