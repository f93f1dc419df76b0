package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/esicorp/securetransfer/cmd"
	"github.com/esicorp/securetransfer/internal/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.RootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	// An operator interrupt is a normal way to leave a receive or the menu.
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\nInterrupted.")
		return
	}

	var reported *cmd.ReportedError
	if !errors.As(err, &reported) {
		fmt.Fprintln(os.Stderr, ui.Cross()+" "+err.Error())
	}
	stop()
	os.Exit(1)
}
