// Command smartstudent runs the SmartStudent background agent and the
// terminal dashboard, teacher and admin views.
package main

import (
	"os"

	"github.com/debuck1718/smartstudent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
