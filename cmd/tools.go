// Package cmd provides command-line interface commands for gatewatch.
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for tools commands
var (
	serverAddr string
	outputJSON bool
	noColor    bool
)

const defaultTimeout = 2 * time.Minute

// NewToolsCmd creates the root tools command with all subcommands.
func NewToolsCmd() *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke gatewatch tools",
		Long: `Inspect and invoke the query tools exposed by a running gatewatch server.

The list subcommand prints the registered tools with their argument schemas,
and the call subcommand invokes one tool with a JSON argument object.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	toolsCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8090", "gatewatch server address")
	toolsCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output raw JSON")
	toolsCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	toolsCmd.AddCommand(newListCmd())
	toolsCmd.AddCommand(newCallCmd())
	return toolsCmd
}

type toolListing struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Schema      json.RawMessage `json:"input_schema"`
	} `json:"tools"`
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			body, err := doRequest(ctx, http.MethodGet, serverAddr+"/tools", nil)
			if err != nil {
				return err
			}
			if outputJSON {
				fmt.Println(string(body))
				return nil
			}

			var listing toolListing
			if err := json.Unmarshal(body, &listing); err != nil {
				return fmt.Errorf("failed to parse tool listing: %w", err)
			}

			headerColor.Printf("Registered tools (%d)\n\n", len(listing.Tools))
			for _, t := range listing.Tools {
				successColor.Printf("  %s\n", t.Name)
				infoColor.Printf("    %s\n", t.Description)
			}
			return nil
		},
	}
}

func newCallCmd() *cobra.Command {
	var argsJSON string

	callCmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke one tool with a JSON argument object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(argsJSON)) {
				return fmt.Errorf("--args must be a valid JSON object")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			body, err := doRequest(ctx, http.MethodPost, serverAddr+"/tools/"+args[0], []byte(argsJSON))
			if err != nil {
				return err
			}
			if outputJSON {
				fmt.Println(string(body))
				return nil
			}
			return printResponse(body)
		},
	}

	callCmd.Flags().StringVar(&argsJSON, "args", "{}", "tool arguments as a JSON object")
	return callCmd
}

func doRequest(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("server rate limit exceeded")
	}
	return payload, nil
}

// printResponse unwraps the tool envelope and pretty-prints the inner
// payload with status coloring.
func printResponse(body []byte) error {
	var envelope struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Content) == 0 {
		fmt.Println(string(body))
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(envelope.Content[0].Text), "", "  "); err != nil {
		fmt.Println(envelope.Content[0].Text)
		return nil
	}

	if envelope.IsError {
		errorColor.Fprintln(os.Stderr, "Tool call failed:")
		fmt.Fprintln(os.Stderr, pretty.String())
		return fmt.Errorf("tool returned an error")
	}
	successColor.Println("Tool call succeeded:")
	fmt.Println(pretty.String())
	return nil
}
