// kangaroo recovers small discrete logarithms over Ristretto255 with
// precomputed kangaroo tables and manages those tables.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/cmd/utils"
	"github.com/tos-network/kangaroo/internal/flags"
)

const clientIdentifier = "kangaroo"

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""
var gitDate = ""

var app *cli.App

func init() {
	app = flags.NewApp(gitCommit, gitDate, "the kangaroo discrete log solver")
	app.Commands = []*cli.Command{
		commandSolve,
		commandBench,
		commandInspect,
		commandConvert,
		commandImport,
		commandTables,
		dumpConfigCommand,
		versionCommand,
	}
	app.Flags = append([]cli.Flag{}, utils.LoggingFlags...)
	app.Before = utils.SetupLogging
}

// Commonly used command line flags.
var (
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
	tableFlags = []cli.Flag{
		utils.ConfigFileFlag,
		utils.DataDirFlag,
		utils.TablesDirFlag,
		utils.TableFileFlag,
		utils.TableDBFlag,
		utils.BudgetsFlag,
		utils.CacheFlag,
	}
)

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// mustPrintJSON prints the JSON encoding of the given object and
// exits the program with an error message when the marshaling fails.
func mustPrintJSON(jsonObject interface{}) {
	str, err := json.MarshalIndent(jsonObject, "", "  ")
	if err != nil {
		utils.Fatalf("Failed to marshal JSON object: %v", err)
	}
	fmt.Println(string(str))
}
