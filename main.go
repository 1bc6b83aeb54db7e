// The main package for the harvester executable.
package main

import (
	"github.com/webcorpus/harvester/cmd"
)

func main() {
	cmd.Execute()
}
