// Command timetravel runs, tests and inspects undo/redo history scenarios.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/timetravel/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		// Commands silence cobra's printing and render their own errors;
		// repeat the cause on stderr so scripts see why the exit code is set.
		fmt.Fprintln(os.Stderr, "timetravel:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
