package flags

import "github.com/urfave/cli/v2"

const (
	TablesCategory  = "TABLES"
	SolverCategory  = "SOLVER"
	PerfCategory    = "PERFORMANCE TUNING"
	LoggingCategory = "LOGGING AND DEBUGGING"
	MiscCategory    = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
