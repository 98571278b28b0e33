package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvconsole/kvconsole/internal/config"
	"github.com/kvconsole/kvconsole/internal/sanitize"
	kvcversion "github.com/kvconsole/kvconsole/internal/version"
)

// errorMessageLimit caps error details echoed back to the terminal.
const errorMessageLimit = 2048

// OutputFormatter handles output in JSON or human-readable format
type OutputFormatter struct {
	jsonMode bool
	out      io.Writer
	errOut   io.Writer
}

// newOutputFormatter creates a new formatter based on the command's --json flag
func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
}

// Print outputs data in the appropriate format
func (f *OutputFormatter) Print(data any) error {
	if s, ok := data.(string); ok && !f.jsonMode {
		fmt.Fprintln(f.out, s)
		return nil
	}
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(f.out, string(jsonBytes))
	return nil
}

// Success outputs a success message
func (f *OutputFormatter) Success(message string, data map[string]any) error {
	if f.jsonMode {
		output := map[string]any{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.Print(output)
	}
	fmt.Fprintln(f.out, message)
	return nil
}

// Error outputs an error message and returns it wrapped for cobra.
func (f *OutputFormatter) Error(message string, err error) error {
	if f.jsonMode {
		output := map[string]any{
			"success": false,
			"error":   message,
		}
		if err != nil {
			output["details"] = sanitize.TruncateUTF8(err.Error(), errorMessageLimit)
		}
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Fprintln(f.errOut, string(jsonBytes))
	} else {
		if err != nil {
			fmt.Fprintf(f.errOut, "%s: %s\n", message, sanitize.TruncateUTF8(err.Error(), errorMessageLimit))
		} else {
			fmt.Fprintln(f.errOut, message)
		}
	}
	if err == nil {
		return &reportedError{err: errors.New(message)}
	}
	return &reportedError{err: fmt.Errorf("%s: %w", message, err)}
}

// reportedError marks an error the formatter has already written out.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kvc",
		Short: "kvc - interactive console for Redis servers",
		Long: `kvc keeps a list of named Redis connection profiles, runs ad-hoc
commands against one of them and renders replies the way redis-cli does.

Profiles and command history live in a local SQLite database; stored
passwords are encrypted with a per-instance key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = kvcversion.FormatVersion(kvcversion.String())
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	flags := rootCmd.PersistentFlags()
	flags.Bool("json", false, "Output in JSON format")
	flags.String("instance", config.DefaultInstance, "Instance name under the kvconsole home directory")
	flags.String("db", "", "Path to the configuration database (overrides the instance default)")
	flags.Bool("debug", false, "Write debug level entries to the log file")

	rootCmd.AddCommand(
		newProfileCommand(),
		newExecCommand(),
		newConsoleCommand(),
		newHistoryCommand(),
		newKeysCommand(),
		newInfoCommand(),
		newKeyCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
