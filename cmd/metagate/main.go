// metagate admits and executes EIP-712 signed meta transactions against a
// local ledger, and builds and signs them for testing.
package main

import (
	"fmt"
	"os"

	"github.com/tos-network/metagate/cmd/utils"
	"github.com/tos-network/metagate/internal/flags"
	"github.com/urfave/cli/v2"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""
var gitDate = ""

var app *cli.App

func init() {
	app = flags.NewApp(gitCommit, gitDate, "an EIP-712 meta transaction gateway")
	app.Commands = []*cli.Command{
		commandAccount,
		commandEncode,
		commandDigest,
		commandSign,
		commandSubmit,
		dumpConfigCommand,
		commandVersion,
	}
	app.Flags = utils.LoggingFlags
	app.Before = func(ctx *cli.Context) error {
		utils.SetupLogging(ctx)
		return nil
	}
}

// Commonly used command line flags.
var (
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
)

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
