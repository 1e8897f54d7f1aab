package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fluxbase/flux-go/pkg/client"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <udfPath> [args-json]",
		Short: "Subscribe to a query and stream results as they change",
		Long: `Subscribe to a query and print every result the server pushes,
one JSON document per update, until interrupted. The subscription
survives reconnects.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(args)
		},
	}
}

func runWatch(args []string) error {
	callArgs, err := parseArgs(args)
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	sub := c.Subscribe(args[0], callArgs)
	defer sub.Cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case update, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			if update.Err != nil {
				fmt.Fprintf(os.Stderr, "query error: %s\n", update.Err)
				continue
			}
			if err := printResult(update.Value); err != nil {
				return err
			}
		case <-sig:
			return nil
		case <-c.GiveUp():
			return fmt.Errorf("%w (deployment %s)", client.ErrGiveUp, flagDeployment)
		}
	}
}
