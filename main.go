// The main package for the nacecrawler executable.
package main

import (
	"github.com/JakeFAU/nace-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
