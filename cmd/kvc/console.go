package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kvconsole/kvconsole/internal/command"
	"github.com/kvconsole/kvconsole/internal/result"
	"github.com/kvconsole/kvconsole/internal/sanitize"
)

const defaultHeartbeat = 30 * time.Second

// metaCommands are handled by the console itself and never reach the server.
var metaCommands = []string{
	":connect", ":disconnect", ":profiles", ":get", ":keys",
	":history", ":clear-history", ":help", ":quit",
}

func newConsoleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console [profile]",
		Short: "Open an interactive console",
		Long: `Open an interactive console against a saved profile. Without an
argument the console reconnects to the profile used last.

Lines are sent to the server as commands. Lines starting with ':' are
console commands; type :help to list them.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runConsole,
	}
	cmd.Flags().Duration("heartbeat", defaultHeartbeat, "Interval between connection checks (0 disables)")
	return cmd
}

func runConsole(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	heartbeat, _ := cmd.Flags().GetDuration("heartbeat")

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "kvc> ",
		AutoComplete:    newCompleter(a),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),

		HistorySearchFold:      true,
		DisableAutoSaveHistory: true,
		FuncFilterInputRune:    filterInput,
	})
	if err != nil {
		return out.Error("Failed to start line editor", err)
	}
	defer rl.Close()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	c := newConsole(a, rl.Stdout())
	c.remember = func(line string) { _ = rl.SaveHistory(line) }
	recent := a.journal.List()
	for i := len(recent) - 1; i >= 0; i-- {
		_ = rl.SaveHistory(recent[i])
	}

	target := a.registry.LastActiveID()
	if len(args) == 1 {
		target = args[0]
	}
	if target != "" {
		c.connect(ctx, target)
	} else {
		c.println(c.styles.muted.Render("Not connected. Use :connect <profile> or :profiles."))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.session.Monitor(ctx, heartbeat, c.reportProbeFailure)
	}()
	defer wg.Wait()
	defer cancel()

	for {
		rl.SetPrompt(c.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				c.println(c.styles.muted.Render("(Use :quit or Ctrl+D to exit)"))
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.logger.Warn("console input closed", zap.Error(err))
			}
			return nil
		}
		if c.handle(ctx, line) {
			return nil
		}
	}
}

// filterInput drops Ctrl+Z so the console is not suspended mid-line.
func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

func newCompleter(a *app) *readline.PrefixCompleter {
	profileNames := func(string) []string {
		profiles := a.registry.List()
		names := make([]string, 0, len(profiles))
		for _, p := range profiles {
			names = append(names, p.Name)
		}
		return names
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(metaCommands)+len(command.Verbs()))
	for _, meta := range metaCommands {
		if meta == ":connect" {
			items = append(items, readline.PcItem(meta, readline.PcItemDynamic(profileNames)))
			continue
		}
		items = append(items, readline.PcItem(meta))
	}
	for _, verb := range command.Verbs() {
		items = append(items, readline.PcItem(verb))
	}
	return readline.NewPrefixCompleter(items...)
}

// console interprets input lines against the app's active session.
type console struct {
	app    *app
	out    io.Writer
	styles consoleStyles

	// remember adds a line to the line editor's recall list.
	remember func(string)
}

func newConsole(a *app, out io.Writer) *console {
	return &console{
		app:      a,
		out:      out,
		styles:   newConsoleStyles(out),
		remember: func(string) {},
	}
}

func (c *console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *console) prompt() string {
	p, ok := c.app.registry.ActiveProfile()
	if !ok {
		return c.styles.muted.Render("kvc") + "> "
	}
	return c.styles.prompt.Render(fmt.Sprintf("%s[%d]", sanitize.Label(p.Name, maxNameRunes), p.Database)) + "> "
}

// handle runs one input line. It reports true when the console should exit.
func (c *console) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ":") {
		return c.meta(ctx, line)
	}

	r := c.app.session.Execute(ctx, line)
	c.printResult(r)
	if r.IsError() {
		return false
	}
	if err := c.app.journal.Record(ctx, line); err != nil {
		c.app.logger.Warn("record history", zap.Error(err))
	}
	c.remember(line)
	return false
}

func (c *console) meta(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case ":quit", ":exit", ":q":
		return true
	case ":help":
		c.help()
	case ":connect":
		if len(args) != 1 {
			c.printError("usage: :connect <profile>")
			return false
		}
		c.connect(ctx, args[0])
	case ":disconnect":
		if err := c.app.registry.Disconnect(ctx); err != nil {
			c.printError(err.Error())
			return false
		}
		c.println(c.styles.status.Render("Disconnected"))
	case ":profiles":
		c.profiles()
	case ":get":
		if len(args) != 1 {
			c.printError("usage: :get <key>")
			return false
		}
		c.printResult(readKey(ctx, c.app.session, args[0]))
	case ":keys":
		pattern := "*"
		if len(args) > 0 {
			pattern = args[0]
		}
		c.keys(ctx, pattern)
	case ":history":
		c.history(args)
	case ":clear-history":
		if err := c.app.journal.Clear(ctx); err != nil {
			c.printError(err.Error())
			return false
		}
		c.println(c.styles.status.Render("History cleared"))
	default:
		c.printError(fmt.Sprintf("unknown console command %s (try :help)", fields[0]))
	}
	return false
}

func (c *console) connect(ctx context.Context, nameOrID string) {
	p, err := c.app.connect(ctx, nameOrID)
	if err != nil {
		c.printError(err.Error())
		return
	}
	c.println(c.styles.status.Render("Connected to " + p.String()))
}

func (c *console) reportProbeFailure(err error) {
	c.println(c.styles.warning.Render("Connection check failed: " + err.Error()))
}

func (c *console) printResult(r result.Result) {
	text := result.Format(r)
	switch r.Kind {
	case result.KindError:
		text = c.styles.err.Render(text)
	case result.KindStatus:
		text = c.styles.status.Render(text)
	}
	c.println(text)
	if !r.IsError() || r.Elapsed > 0 {
		c.println(c.styles.muted.Render(fmt.Sprintf("(%dms)", r.ElapsedMillis())))
	}
}

func (c *console) printError(msg string) {
	c.println(c.styles.err.Render("(error) " + msg))
}

func (c *console) profiles() {
	profiles := c.app.registry.List()
	if len(profiles) == 0 {
		c.println(c.styles.muted.Render("No profiles saved"))
		return
	}
	active := c.app.registry.ActiveConnectionID()
	for _, p := range profiles {
		marker := "  "
		if p.ID == active {
			marker = "* "
		}
		c.println(marker + sanitize.StripControlChars(p.String()))
	}
}

func (c *console) keys(ctx context.Context, pattern string) {
	if !c.app.session.IsConnected() {
		c.printError("not connected to server")
		return
	}
	keys := c.app.session.KeysMatching(ctx, pattern)
	if len(keys) == 0 {
		c.println("(empty array)")
		return
	}
	for _, key := range keys {
		c.println(sanitize.StripControlChars(key) + " " + c.styles.muted.Render(c.app.session.GetType(ctx, key)))
	}
}

func (c *console) history(args []string) {
	entries := c.app.journal.List()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			c.printError("usage: :history [count]")
			return
		}
		if n < len(entries) {
			entries = entries[:n]
		}
	}
	if len(entries) == 0 {
		c.println(c.styles.muted.Render("History is empty"))
		return
	}
	for i, entry := range entries {
		c.println(fmt.Sprintf("%3d  %s", i+1, entry))
	}
}

func (c *console) help() {
	c.println(c.styles.heading.Render("Console commands"))
	c.println(`  :connect <profile>   switch to a saved profile
  :disconnect          close the current connection
  :profiles            list saved profiles (* marks the active one)
  :get <key>           show a key's value according to its type
  :keys [pattern]      list keys matching a glob pattern
  :history [count]     show recent commands, newest first
  :clear-history       forget recorded commands
  :quit                leave the console
Anything else is sent to the server.`)
}
