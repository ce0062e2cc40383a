// Command stackvm assembles, runs, traces and proves stack VM programs and
// runs declarative test scenarios against them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/stackvm/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
