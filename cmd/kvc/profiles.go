package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/kvconsole/kvconsole/internal/profile"
	"github.com/kvconsole/kvconsole/internal/sanitize"
)

// maxNameRunes bounds profile names in listings and the console prompt.
const maxNameRunes = 32

func newProfileCommand() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage saved connection profiles",
	}

	addCmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "Save a new connection profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          profileAdd,
	}
	addProfileFlags(addCmd)

	listCmd := &cobra.Command{
		Use:           "list",
		Short:         "List saved connection profiles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          profileList,
	}

	editCmd := &cobra.Command{
		Use:           "edit <profile>",
		Short:         "Change fields of a saved profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          profileEdit,
	}
	addProfileFlags(editCmd)
	editCmd.Flags().String("name", "", "New display name")
	editCmd.Flags().Bool("clear-password", false, "Remove the stored password")

	removeCmd := &cobra.Command{
		Use:           "remove <profile>",
		Aliases:       []string{"rm"},
		Short:         "Delete a saved profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          profileRemove,
	}

	exportCmd := &cobra.Command{
		Use:           "export",
		Short:         "Write saved profiles as a YAML document",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          profileExport,
	}
	exportCmd.Flags().String("file", "", "Write to this file instead of stdout")
	exportCmd.Flags().Bool("with-secrets", false, "Include passwords in the document")

	importCmd := &cobra.Command{
		Use:           "import <file>",
		Short:         "Add or replace profiles from a YAML document",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          profileImport,
	}

	profileCmd.AddCommand(addCmd, listCmd, editCmd, removeCmd, exportCmd, importCmd)
	return profileCmd
}

func addProfileFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("host", "127.0.0.1", "Server host name or address")
	flags.Int("port", profile.DefaultPort, "Server port")
	flags.String("password", "", "Server password (visible in shell history; prefer --ask-password)")
	flags.Bool("ask-password", false, "Prompt for the server password without echo")
	flags.Bool("tls", false, "Connect with TLS")
	flags.Int("database", profile.DefaultDatabase, "Database index selected after connecting")
	flags.Int("timeout-ms", profile.DefaultTimeoutMS, "Connection timeout in milliseconds")
}

// applyProfileFlags copies flags onto b. With onlyChanged set, flags left at
// their defaults keep the builder's current values.
func applyProfileFlags(cmd *cobra.Command, b *profile.ProfileBuilder, onlyChanged bool) error {
	flags := cmd.Flags()
	use := func(name string) bool {
		return !onlyChanged || flags.Changed(name)
	}

	if use("host") {
		host, _ := flags.GetString("host")
		b.Host(strings.TrimSpace(host))
	}
	if use("port") {
		port, _ := flags.GetInt("port")
		b.Port(port)
	}
	if use("tls") {
		tls, _ := flags.GetBool("tls")
		b.TLS(tls)
	}
	if use("database") {
		db, _ := flags.GetInt("database")
		b.Database(db)
	}
	if use("timeout-ms") {
		timeout, _ := flags.GetInt("timeout-ms")
		b.TimeoutMS(timeout)
	}
	if flags.Changed("password") {
		password, _ := flags.GetString("password")
		b.Password(password)
	}
	if ask, _ := flags.GetBool("ask-password"); ask {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		b.Password(password)
	}
	return nil
}

// readPassword prompts on the terminal without echo. When stdin is not a
// terminal the first line of input is used.
func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if cmd.InOrStdin() == os.Stdin && terminal.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := terminal.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func profileAdd(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	b := profile.Builder().Name(strings.TrimSpace(args[0]))
	if err := applyProfileFlags(cmd, b, false); err != nil {
		return out.Error("Failed to read profile options", err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	added, err := a.registry.Add(commandContext(cmd), b.Build())
	if err != nil {
		return out.Error("Failed to add profile", err)
	}
	return out.Success(fmt.Sprintf("Added profile %s [%s]", added, added.ID), map[string]any{
		"profile": added,
	})
}

func profileList(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	profiles := a.registry.List()
	if out.jsonMode {
		return out.Print(map[string]any{
			"profiles":       profiles,
			"last_active_id": a.registry.LastActiveID(),
		})
	}

	if len(profiles) == 0 {
		fmt.Fprintln(out.out, "No profiles saved. Add one with: kvc profile add <name> --host <host>")
		return nil
	}

	last := a.registry.LastActiveID()
	w := tabwriter.NewWriter(out.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tDB\tTLS\tAUTH\tID")
	for _, p := range profiles {
		name := sanitize.Label(p.Name, maxNameRunes)
		if p.ID == last {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			name,
			p.Addr(),
			p.Database,
			yesNo(p.TLS),
			yesNo(p.HasPassword()),
			p.ID,
		)
	}
	return w.Flush()
}

func profileEdit(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	current, err := a.registry.Find(args[0])
	if err != nil {
		return out.Error("Failed to find profile", err)
	}
	if err := a.registry.CheckMutable(current.ID); err != nil {
		return out.Error("Cannot edit profile", err)
	}

	b := current.ToBuilder()
	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		b.Name(strings.TrimSpace(name))
	}
	if drop, _ := cmd.Flags().GetBool("clear-password"); drop {
		b.Password("")
	}
	if err := applyProfileFlags(cmd, b, true); err != nil {
		return out.Error("Failed to read profile options", err)
	}

	updated := b.Build()
	if err := updated.Validate(); err != nil {
		return out.Error("Invalid profile", err)
	}
	if err := a.registry.Update(commandContext(cmd), updated); err != nil {
		return out.Error("Failed to update profile", err)
	}
	return out.Success(fmt.Sprintf("Updated profile %s", updated), map[string]any{
		"profile": updated,
	})
}

func profileRemove(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	p, err := a.registry.Find(args[0])
	if err != nil {
		return out.Error("Failed to find profile", err)
	}
	if err := a.registry.Remove(commandContext(cmd), p.ID); err != nil {
		return out.Error("Failed to remove profile", err)
	}
	return out.Success(fmt.Sprintf("Removed profile %s", p), map[string]any{
		"id": p.ID,
	})
}

func profileExport(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	path, _ := cmd.Flags().GetString("file")
	withSecrets, _ := cmd.Flags().GetBool("with-secrets")

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	profiles := a.registry.List()
	if path == "" {
		if err := profile.Export(out.out, profiles, withSecrets); err != nil {
			return out.Error("Failed to export profiles", err)
		}
		return nil
	}

	mode := os.FileMode(0o644)
	if withSecrets {
		mode = 0o600
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return out.Error("Failed to create export file", err)
	}
	if err := profile.Export(f, profiles, withSecrets); err != nil {
		f.Close()
		return out.Error("Failed to export profiles", err)
	}
	if err := f.Close(); err != nil {
		return out.Error("Failed to write export file", err)
	}
	return out.Success(fmt.Sprintf("Exported %d profiles to %s", len(profiles), path), map[string]any{
		"count": len(profiles),
		"file":  path,
	})
}

func profileImport(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return out.Error("Failed to read import file", err)
	}
	imported, err := profile.Import(data)
	if err != nil {
		return out.Error("Failed to parse import file", err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	ctx := commandContext(cmd)
	var added, replaced int
	for _, p := range imported {
		if _, exists := a.registry.Get(p.ID); exists {
			if err := a.registry.Update(ctx, p); err != nil {
				return out.Error(fmt.Sprintf("Failed to replace profile %s", p.Name), err)
			}
			replaced++
			continue
		}
		if _, err := a.registry.Add(ctx, p); err != nil {
			return out.Error(fmt.Sprintf("Failed to add profile %s", p.Name), err)
		}
		added++
	}
	return out.Success(fmt.Sprintf("Imported %d profiles (%d added, %d replaced)", added+replaced, added, replaced), map[string]any{
		"added":    added,
		"replaced": replaced,
	})
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
