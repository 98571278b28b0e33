package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvconsole/kvconsole/internal/command"
	"github.com/kvconsole/kvconsole/internal/result"
	"github.com/kvconsole/kvconsole/internal/sanitize"
	"github.com/kvconsole/kvconsole/internal/transport"
	kvcversion "github.com/kvconsole/kvconsole/internal/version"
)

// resultView is the JSON form of a Result.
type resultView struct {
	Kind      string `json:"kind"`
	Value     any    `json:"value,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func viewOf(r result.Result) resultView {
	return resultView{
		Kind:      r.Kind.String(),
		Value:     r.Value,
		Error:     r.Message,
		Code:      string(r.Code),
		ElapsedMS: r.ElapsedMillis(),
	}
}

// printResult writes r and turns an error Result into a command failure.
func printResult(out *OutputFormatter, r result.Result) error {
	if out.jsonMode {
		if err := out.Print(viewOf(r)); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out.out, result.Format(r))
	}
	if r.IsError() {
		return &reportedError{err: r.AsError()}
	}
	return nil
}

func newExecCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <profile> -- <command> [args...]",
		Short: "Run one command against a saved profile",
		Example: `  kvc exec local -- SET greeting "hello world"
  kvc exec local -- HGETALL user:1`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runExec,
	}
}

func runExec(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	ctx := commandContext(cmd)
	if _, err := a.connect(ctx, args[0]); err != nil {
		return out.Error("Failed to connect", err)
	}

	r := a.session.ExecuteArgs(ctx, args[1:])
	if !r.IsError() {
		if err := a.journal.Record(ctx, command.Join(args[1:])); err != nil {
			return out.Error("Failed to record history", err)
		}
	}
	return printResult(out, r)
}

func newKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "keys <profile> [pattern]",
		Short:         "List keys matching a glob pattern",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runKeys,
	}
}

func runKeys(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	pattern := "*"
	if len(args) == 2 {
		pattern = args[1]
	}

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	ctx := commandContext(cmd)
	if _, err := a.connect(ctx, args[0]); err != nil {
		return out.Error("Failed to connect", err)
	}

	keys := a.session.KeysMatching(ctx, pattern)
	if out.jsonMode {
		return out.Print(map[string]any{"pattern": pattern, "keys": keys})
	}
	if len(keys) == 0 {
		fmt.Fprintln(out.out, "No keys match", pattern)
		return nil
	}
	w := tabwriter.NewWriter(out.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE")
	for _, key := range keys {
		fmt.Fprintf(w, "%s\t%s\n", sanitize.StripControlChars(key), a.session.GetType(ctx, key))
	}
	return w.Flush()
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "info <profile> [section]",
		Short:         "Show the server INFO report",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	ctx := commandContext(cmd)
	p, err := a.connect(ctx, args[0])
	if err != nil {
		return out.Error("Failed to connect", err)
	}

	r := a.session.Info(ctx, args[1:]...)
	if r.IsError() {
		return printResult(out, r)
	}
	report, _ := r.Text()
	if out.jsonMode {
		return out.Print(map[string]any{
			"profile":        p.ID,
			"server_version": kvcversion.ServerVersion(report),
			"keys":           a.session.Size(ctx),
			"info":           report,
		})
	}
	fmt.Fprintf(out.out, "%s, db %d: %d keys\n\n", p, p.Database, a.session.Size(ctx))
	fmt.Fprintln(out.out, strings.TrimSpace(strings.ReplaceAll(report, "\r\n", "\n")))
	return nil
}

func newKeyCommand() *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "View and change individual keys",
	}

	getCmd := &cobra.Command{
		Use:           "get <profile> <key>",
		Short:         "Show a key's value according to its type",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          keyGet,
	}
	setCmd := &cobra.Command{
		Use:           "set <profile> <key> <value>",
		Short:         "Store a string value",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          keySet,
	}
	setCmd.Flags().Duration("ttl", 0, "Expire the key after this long (0 keeps it)")
	delCmd := &cobra.Command{
		Use:           "del <profile> <key> [key...]",
		Short:         "Delete keys",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          keyDelete,
	}
	ttlCmd := &cobra.Command{
		Use:           "ttl <profile> <key>",
		Short:         "Show the remaining time to live in seconds",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          keyTTL,
	}
	expireCmd := &cobra.Command{
		Use:           "expire <profile> <key> <duration>",
		Short:         "Expire a key after a duration such as 90s or 1h",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          keyExpire,
	}
	persistCmd := &cobra.Command{
		Use:           "persist <profile> <key>",
		Short:         "Remove a key's time to live",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          keyPersist,
	}

	keyCmd.AddCommand(getCmd, setCmd, delCmd, ttlCmd, expireCmd, persistCmd)
	return keyCmd
}

// withSession opens the app, connects to the profile named by args[0] and
// runs fn.
func withSession(cmd *cobra.Command, args []string, fn func(a *app) result.Result) error {
	out := newOutputFormatter(cmd)

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	if _, err := a.connect(commandContext(cmd), args[0]); err != nil {
		return out.Error("Failed to connect", err)
	}
	return printResult(out, fn(a))
}

func keyGet(cmd *cobra.Command, args []string) error {
	return withSession(cmd, args, func(a *app) result.Result {
		return readKey(commandContext(cmd), a.session, args[1])
	})
}

// readKey fetches key with the typed read matching its server type.
func readKey(ctx context.Context, s *transport.Session, key string) result.Result {
	switch kind := s.GetType(ctx, key); kind {
	case "none":
		return result.Nil()
	case "string":
		value, ok := s.GetString(ctx, key)
		if !ok {
			return result.Nil()
		}
		return result.Success(result.KindString, value)
	case "hash":
		return result.Success(result.KindHash, s.GetHash(ctx, key))
	case "list":
		items := s.GetRange(ctx, key, 0, -1)
		values := make([]any, len(items))
		for i, item := range items {
			values[i] = item
		}
		return result.Success(result.KindArray, values)
	case "set":
		return result.Success(result.KindSet, s.GetMembers(ctx, key))
	case "zset":
		return result.Success(result.KindSortedSet, s.GetScoredMembers(ctx, key))
	default:
		return result.Failure(result.CodeInvalidState, "cannot display %s of type %s", key, kind)
	}
}

func keySet(cmd *cobra.Command, args []string) error {
	ttl, _ := cmd.Flags().GetDuration("ttl")
	return withSession(cmd, args, func(a *app) result.Result {
		ctx := commandContext(cmd)
		r := a.session.SetString(ctx, args[1], args[2])
		if r.IsError() || ttl <= 0 {
			return r
		}
		if exp := a.session.Expire(ctx, args[1], transport.ExpireAfter(ttl)); exp.IsError() {
			return exp
		}
		return r
	})
}

func keyDelete(cmd *cobra.Command, args []string) error {
	return withSession(cmd, args, func(a *app) result.Result {
		return a.session.Delete(commandContext(cmd), args[1:]...)
	})
}

func keyTTL(cmd *cobra.Command, args []string) error {
	return withSession(cmd, args, func(a *app) result.Result {
		return a.session.TTL(commandContext(cmd), args[1])
	})
}

func keyExpire(cmd *cobra.Command, args []string) error {
	d, err := time.ParseDuration(args[2])
	if err != nil {
		return newOutputFormatter(cmd).Error("Invalid duration", err)
	}
	return withSession(cmd, args, func(a *app) result.Result {
		return a.session.Expire(commandContext(cmd), args[1], transport.ExpireAfter(d))
	})
}

func keyPersist(cmd *cobra.Command, args []string) error {
	return withSession(cmd, args, func(a *app) result.Result {
		return a.session.Expire(commandContext(cmd), args[1], transport.NoExpiry())
	})
}
