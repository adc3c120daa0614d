// Command kgain scores spaced-repetition reviews by expected knowledge gain.
package main

import (
	"os"

	"github.com/sky-flux/kgain/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
