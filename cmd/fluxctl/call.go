package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fluxbase/flux-go/pkg/client"
	"github.com/fluxbase/flux-go/pkg/protocol"
)

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <udfPath> [args-json]",
		Short: "Run a one-shot query and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(args, func(ctx context.Context, c *client.Client, udfPath string, callArgs protocol.Value) (protocol.Value, error) {
				return c.Query(ctx, udfPath, callArgs)
			})
		},
	}
}

func mutationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mutation <udfPath> [args-json]",
		Short: "Run a mutation and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(args, func(ctx context.Context, c *client.Client, udfPath string, callArgs protocol.Value) (protocol.Value, error) {
				return c.Mutation(ctx, udfPath, callArgs)
			})
		},
	}
}

func actionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action <udfPath> [args-json]",
		Short: "Run an action and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(args, func(ctx context.Context, c *client.Client, udfPath string, callArgs protocol.Value) (protocol.Value, error) {
				return c.Action(ctx, udfPath, callArgs)
			})
		},
	}
}

type callFn func(ctx context.Context, c *client.Client, udfPath string, args protocol.Value) (protocol.Value, error)

func runCall(args []string, call callFn) error {
	callArgs, err := parseArgs(args)
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := call(context.Background(), c, args[0], callArgs)
	if err != nil {
		return err
	}
	return printResult(result)
}
