// Command shctl maintains a subject hierarchy over a saved scene.
package main

import (
	"os"

	"github.com/zjrosen/subjecthierarchy/cmd"
)

// Set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version + " (" + commit + ", " + date + ")")
	os.Exit(cmd.Execute())
}
