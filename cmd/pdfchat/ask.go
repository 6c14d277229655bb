package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/imfeniljikadara/nexus-ai/internal/app"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/spf13/cobra"
)

var (
	askFile        string
	askInteractive bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about a PDF",
	Example: `  pdfchat ask --file handbook.pdf "Who approves leave?"
  pdfchat ask --file https://example.com/report.pdf --interactive`,
	Args: func(cmd *cobra.Command, args []string) error {
		if askInteractive {
			return cobra.MaximumNArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "path or http(s) url of the PDF")
	askCmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "keep asking follow-up questions read from stdin")
	_ = askCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		ref, err := a.Reference(askFile)
		if err != nil {
			return describe(err)
		}
		if len(args) == 1 {
			if err := askOnce(ctx, cmd, a, ref, args[0]); err != nil {
				return err
			}
		}
		if !askInteractive {
			return nil
		}
		return interactive(ctx, cmd, a, ref, cmd.InOrStdin())
	})
}

func askOnce(ctx context.Context, cmd *cobra.Command, a *app.App, ref docModel.Reference, question string) error {
	answer, err := a.Sessions.Ask(ctx, ref, question)
	if err != nil {
		return describe(err)
	}
	cmd.Println(answer.Text)
	return nil
}

// interactive reads one question per line until EOF, "exit" or ctx is cancelled. Failed turns are
// reported and the loop goes on, the session stays usable.
func interactive(ctx context.Context, cmd *cobra.Command, a *app.App, ref docModel.Reference, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		cmd.Print("> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := askOnce(ctx, cmd, a, ref, question); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			cmd.PrintErrln(err)
		}
	}
}

func describe(err error) error {
	kind, info := errorModel.Describe(err)
	if kind == errorModel.Internal {
		return err
	}
	return errors.New(info.Message)
}
