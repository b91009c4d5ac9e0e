package main

import (
	"context"
	"fmt"
	"os"

	"splitpay/internal/cli"
)

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := SetupCommands().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
