// File: cmd/mend/main.go
package main

import (
	"github.com/korhaliv/mend-cli/cmd"
)

// main is the entry point for the mend CLI.
func main() {
	cmd.Execute()
}
