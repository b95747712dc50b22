package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/satishkumarchitti/AI-Chat-Bot/store"
	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about a document",
	}
	cmd.AddCommand(newChatAskCmd())
	cmd.AddCommand(newChatHistoryCmd())
	cmd.AddCommand(newChatClearCmd())
	return cmd
}

func newChatAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <id> <question>...",
		Short: "Ask the assistant about a document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := openDocument(ctx, ws, args[0]); err != nil {
				return err
			}

			conv := ws.Conversations()
			before := len(conv.Active())
			p, err := ws.Send(ctx, strings.Join(args[1:], " "))
			if err := settle(ctx, p, err, func() string { return conv.State().Error }); err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), conv.Active()[before:])
			return nil
		},
	}
}

func newChatHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the conversation for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := requireLogin(ws); err != nil {
				return err
			}

			id := store.DocumentID(args[0])
			conv := ws.Conversations()
			if err := settle(ctx, ws.LoadHistory(ctx, id), nil, func() string { return conv.State().Error }); err != nil {
				return err
			}
			entries := conv.Log(id)
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No messages yet")
				return nil
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func newChatClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <id>",
		Short: "Delete the conversation for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := requireLogin(ws); err != nil {
				return err
			}

			id := store.DocumentID(args[0])
			if err := settle(ctx, ws.ClearHistory(ctx, id), nil, func() string { return ws.Conversations().State().Error }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared chat history for document %s\n", id)
			return nil
		},
	}
}

// openDocument makes id the current document with its extraction and chat
// history loaded.
func openDocument(ctx context.Context, ws *workspace.Workspace, id string) error {
	if err := requireLogin(ws); err != nil {
		return err
	}
	err := ws.OpenDocument(ctx, store.DocumentID(id)).Wait(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if msg := ws.Documents().State().Error; msg != "" {
		return errors.New(msg)
	}
	if msg := ws.Conversations().State().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func printEntries(out io.Writer, entries []store.Entry) {
	you := color.New(color.FgCyan, color.Bold)
	bot := color.New(color.FgGreen, color.Bold)
	for _, e := range entries {
		ts := e.Timestamp.Local().Format("15:04")
		if e.Sender == store.SenderUser {
			you.Fprintf(out, "[%s] You: ", ts)
		} else {
			bot.Fprintf(out, "[%s] Assistant: ", ts)
		}
		fmt.Fprintln(out, e.Text)
	}
}
