// Command dosewatch keeps a medication schedule, reminds at each dose time
// and logs whether the dose was taken.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/dosewatch/internal/cli"
)

func main() {
	// A .env file in the working directory may supply DOSEWATCH_* settings.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
