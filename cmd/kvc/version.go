package main

import (
	"fmt"

	"github.com/spf13/cobra"

	kvcversion "github.com/kvconsole/kvconsole/internal/version"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "version",
		Short:         "Show the client version, and a server's with --profile",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runVersion,
	}
	cmd.Flags().String("profile", "", "Also report the version of this profile's server")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	clientVersion := kvcversion.String()
	target, _ := cmd.Flags().GetString("profile")

	var serverVersion string
	var serverErr error
	if target != "" {
		serverVersion, serverErr = fetchServerVersion(cmd, target)
	}

	if out.jsonMode {
		data := map[string]any{
			"client": clientVersion,
		}
		if target != "" {
			if serverErr != nil {
				data["server"] = nil
				data["server_error"] = serverErr.Error()
			} else {
				data["server"] = serverVersion
			}
		}
		return out.Print(data)
	}

	fmt.Fprintf(out.out, "Client: %s\n", kvcversion.FormatVersion(clientVersion))
	switch {
	case target == "":
	case serverErr != nil:
		fmt.Fprintf(out.out, "Server: unavailable (%v)\n", serverErr)
	case serverVersion == "":
		fmt.Fprintln(out.out, "Server: running (version unknown)")
	default:
		fmt.Fprintf(out.out, "Server: %s\n", kvcversion.FormatVersion(serverVersion))
	}
	return nil
}

func fetchServerVersion(cmd *cobra.Command, nameOrID string) (string, error) {
	a, err := openApp(cmd)
	if err != nil {
		return "", err
	}
	defer a.Close()

	ctx := commandContext(cmd)
	if _, err := a.connect(ctx, nameOrID); err != nil {
		return "", err
	}
	r := a.session.Info(ctx, "server")
	if r.IsError() {
		return "", r.AsError()
	}
	report, _ := r.Text()
	return kvcversion.ServerVersion(report), nil
}
