package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func buildRunCmd(configPath *string) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "run [prompt...]",
		Short: "Run one conversation turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, err := buildRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			history, err := rt.sessions.Load(sessionID)
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}

			turn, err := rt.loop.Run(ctx, history, strings.Join(args, " "))
			if err != nil {
				return err
			}

			merged := append(history, turn.Appended...)
			if err := rt.sessions.Save(sessionID, merged); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			fmt.Println(turn.Reply)
			fmt.Fprintf(cmd.ErrOrStderr(), "(session %s, %d step(s), terminated by %s)\n", sessionID, turn.Steps, turn.TerminatedBy)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue (generated if omitted)")
	return cmd
}

func buildMemoryCmd(configPath *string) *cobra.Command {
	memCmd := &cobra.Command{Use: "memory", Short: "Inspect and manage core memory"}

	memCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print every core memory block",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(context.Background(), *configPath)
			if err != nil {
				return err
			}
			for _, b := range rt.memory.List() {
				fmt.Printf("--- %s (%d/%d bytes, read_only=%v) ---\n%s\n\n", b.Label, len(b.Value), b.Limit, b.ReadOnly, b.Value)
			}
			return nil
		},
	})

	memCmd.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Print the version history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(context.Background(), *configPath)
			if err != nil {
				return err
			}
			for _, v := range rt.memory.Log() {
				fmt.Printf("%s  %s\n", v.ID[:12], v.Message)
			}
			return nil
		},
	})

	memCmd.AddCommand(&cobra.Command{
		Use:   "rollback <version-id>",
		Short: "Print the block snapshot a prior version would restore, without applying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(context.Background(), *configPath)
			if err != nil {
				return err
			}
			snapshot, err := rt.memory.Rollback(args[0])
			if err != nil {
				return err
			}
			labels := make([]string, 0, len(snapshot))
			for l := range snapshot {
				labels = append(labels, l)
			}
			sort.Strings(labels)
			for _, l := range labels {
				fmt.Printf("--- %s ---\n%s\n\n", l, snapshot[l])
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "(preview only; nothing was applied)")
			return nil
		},
	})

	memCmd.AddCommand(&cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Diff two memory versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(context.Background(), *configPath)
			if err != nil {
				return err
			}
			diff, err := rt.memory.Diff(args[0], args[1])
			if err != nil {
				return err
			}
			for _, entry := range diff {
				fmt.Printf("--- %s (%s) ---\n- %s\n+ %s\n", entry.Label, entry.Change, entry.Old, entry.New)
			}
			return nil
		},
	})

	return memCmd
}

func buildMCPCmd(configPath *string) *cobra.Command {
	mcpCmd := &cobra.Command{Use: "mcp", Short: "Manage external tool servers"}

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "connect <server-name>",
		Short: "Connect to a configured MCP server on demand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(context.Background(), *configPath)
			if err != nil {
				return err
			}
			client, err := rt.bridge.EnsureConnected(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("connected to %s, %d tool(s) available\n", args[0], len(client.Tools()))
			return nil
		},
	})

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "disconnect <server-name>",
		Short: "Disconnect a running MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(context.Background(), *configPath)
			if err != nil {
				return err
			}
			return rt.bridge.Disconnect(args[0])
		},
	})

	return mcpCmd
}
