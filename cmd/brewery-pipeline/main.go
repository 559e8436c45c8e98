// Command brewery-pipeline runs the brewery ETL stages from the command line
// or on a cron schedule.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
