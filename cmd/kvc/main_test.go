package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/kvconsole/kvconsole/internal/config"
	"github.com/kvconsole/kvconsole/internal/profile"
	"github.com/kvconsole/kvconsole/internal/result"
)

// useTempHome points the kvconsole home at a fresh directory.
// Not compatible with t.Parallel().
func useTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)
	return home
}

// runKVC executes the root command with args and returns stdout and stderr.
func runKVC(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runKVCWithInput(t, "", args...)
}

func runKVCWithInput(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := runKVC(t, args...)
	if err != nil {
		t.Fatalf("kvc %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return stdout
}

// addMiniProfile starts an in-process server and saves a profile for it.
func addMiniProfile(t *testing.T, name string) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	mustRun(t, "profile", "add", name, "--host", mr.Host(), "--port", mr.Port())
	return mr
}

func TestOutputFormatterJSONError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := &OutputFormatter{jsonMode: true, out: &stdout, errOut: &stderr}

	cause := errors.New("boom")
	err := out.Error("Failed to connect", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("returned error does not wrap cause: %v", err)
	}
	var reported *reportedError
	if !errors.As(err, &reported) {
		t.Fatalf("returned error is not marked as reported: %T", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &payload); err != nil {
		t.Fatalf("stderr is not JSON: %q", stderr.String())
	}
	want := map[string]any{"success": false, "error": "Failed to connect", "details": "boom"}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if stdout.Len() != 0 {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestOutputFormatterErrorWithoutCause(t *testing.T) {
	var stderr bytes.Buffer
	out := &OutputFormatter{out: &bytes.Buffer{}, errOut: &stderr}

	err := out.Error("nothing to do", nil)
	if err == nil || err.Error() != "nothing to do" {
		t.Fatalf("Error() = %v", err)
	}
	if got := stderr.String(); got != "nothing to do\n" {
		t.Fatalf("stderr = %q", got)
	}
}

func TestProfileLifecycle(t *testing.T) {
	useTempHome(t)

	out := mustRun(t, "profile", "add", "cache", "--host", "10.1.2.3", "--port", "6380", "--database", "2")
	if !strings.Contains(out, "Added profile cache (10.1.2.3:6380)") {
		t.Fatalf("add output = %q", out)
	}

	out = mustRun(t, "profile", "list")
	for _, want := range []string{"NAME", "cache", "10.1.2.3:6380", "2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}

	mustRun(t, "profile", "edit", "cache", "--port", "7000", "--name", "sessions")

	out = mustRun(t, "--json", "profile", "list")
	var listed struct {
		Profiles []profile.Profile `json:"profiles"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list --json is not JSON: %v\n%s", err, out)
	}
	if len(listed.Profiles) != 1 {
		t.Fatalf("expected one profile, got %+v", listed.Profiles)
	}
	got := listed.Profiles[0]
	if got.Name != "sessions" || got.Port != 7000 || got.Host != "10.1.2.3" || got.Database != 2 {
		t.Fatalf("edited profile = %+v", got)
	}

	mustRun(t, "profile", "remove", "sessions")
	out = mustRun(t, "profile", "list")
	if !strings.Contains(out, "No profiles saved") {
		t.Fatalf("list after remove = %q", out)
	}
}

func TestProfileAddRejectsInvalidPort(t *testing.T) {
	useTempHome(t)

	_, stderr, err := runKVC(t, "profile", "add", "bad", "--port", "70000")
	if err == nil {
		t.Fatal("expected error for out-of-range port")
	}
	if !errors.Is(err, profile.ErrInvalid) {
		t.Fatalf("error = %v, want profile.ErrInvalid", err)
	}
	if !strings.Contains(stderr, "Failed to add profile") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestProfileAddAskPasswordReadsInput(t *testing.T) {
	useTempHome(t)
	mr := miniredis.RunT(t)
	mr.RequireAuth("hunter2")

	if _, stderr, err := runKVCWithInput(t, "hunter2\n",
		"profile", "add", "secure", "--host", mr.Host(), "--port", mr.Port(), "--ask-password",
	); err != nil {
		t.Fatalf("add: %v\n%s", err, stderr)
	}

	out := mustRun(t, "exec", "secure", "--", "PING")
	if strings.TrimSpace(out) != `"PONG"` {
		t.Fatalf("exec output = %q", out)
	}
}

func TestProfileExportImport(t *testing.T) {
	useTempHome(t)
	mustRun(t, "profile", "add", "one", "--host", "h1", "--password", "pw1")
	mustRun(t, "profile", "add", "two", "--host", "h2", "--tls")

	file := filepath.Join(t.TempDir(), "profiles.yaml")
	mustRun(t, "profile", "export", "--file", file, "--with-secrets")
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("stat export: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("export with secrets mode = %o", info.Mode().Perm())
	}

	out := mustRun(t, "--instance", "copy", "profile", "import", file)
	if !strings.Contains(out, "Imported 2 profiles (2 added, 0 replaced)") {
		t.Fatalf("import output = %q", out)
	}
	out = mustRun(t, "--instance", "copy", "profile", "import", file)
	if !strings.Contains(out, "(0 added, 2 replaced)") {
		t.Fatalf("second import output = %q", out)
	}

	a, err := newApp(context.Background(), appOptions{Instance: "copy"})
	if err != nil {
		t.Fatalf("open copy: %v", err)
	}
	defer a.Close()
	var names []string
	for _, p := range a.registry.List() {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"one", "two"}, names); diff != "" {
		t.Fatalf("imported names mismatch (-want +got):\n%s", diff)
	}
	one, err := a.registry.Find("one")
	if err != nil || one.Password != "pw1" {
		t.Fatalf("imported profile = %+v, %v", one, err)
	}
}

func TestProfileExportOmitsSecretsByDefault(t *testing.T) {
	useTempHome(t)
	mustRun(t, "profile", "add", "one", "--host", "h1", "--password", "topsecret")

	out := mustRun(t, "profile", "export")
	if strings.Contains(out, "topsecret") {
		t.Fatalf("export leaked password:\n%s", out)
	}
	if !strings.Contains(out, "name: one") {
		t.Fatalf("export output = %q", out)
	}
}

func TestExecRecordsSuccessfulCommands(t *testing.T) {
	useTempHome(t)
	addMiniProfile(t, "local")

	out := mustRun(t, "exec", "local", "--", "SET", "greeting", "hello world")
	if strings.TrimSpace(out) != `"OK"` {
		t.Fatalf("SET output = %q", out)
	}
	out = mustRun(t, "exec", "local", "--", "GET", "greeting")
	if strings.TrimSpace(out) != `"hello world"` {
		t.Fatalf("GET output = %q", out)
	}

	_, _, err := runKVC(t, "exec", "local", "--", "FROB")
	if !result.HasCode(err, result.CodeUnknownVerb) {
		t.Fatalf("FROB error = %v", err)
	}

	out = mustRun(t, "--json", "history", "list")
	var hist struct {
		Commands []string `json:"commands"`
		MaxSize  int      `json:"max_size"`
	}
	if err := json.Unmarshal([]byte(out), &hist); err != nil {
		t.Fatalf("history --json: %v\n%s", err, out)
	}
	want := []string{"GET greeting", `SET greeting "hello world"`}
	if diff := cmp.Diff(want, hist.Commands); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
	if hist.MaxSize != 100 {
		t.Fatalf("max size = %d", hist.MaxSize)
	}
}

func TestExecSendsArgumentsUnchanged(t *testing.T) {
	useTempHome(t)
	mr := addMiniProfile(t, "local")

	mustRun(t, "exec", "local", "--", "SET", "blank", "")
	if got, err := mr.Get("blank"); err != nil || got != "" {
		t.Fatalf("server holds (%q, %v), want empty string", got, err)
	}
	mustRun(t, "exec", "local", "--", "SET", `say"hi"`, "x")
	if got, err := mr.Get(`say"hi"`); err != nil || got != "x" {
		t.Fatalf("server holds (%q, %v) under the quoted key", got, err)
	}

	out := mustRun(t, "--json", "history", "list")
	var hist struct {
		Commands []string `json:"commands"`
	}
	if err := json.Unmarshal([]byte(out), &hist); err != nil {
		t.Fatalf("history --json: %v\n%s", err, out)
	}
	if len(hist.Commands) != 2 || hist.Commands[1] != `SET blank ""` {
		t.Fatalf("history = %q", hist.Commands)
	}
}

func TestExecJSONResult(t *testing.T) {
	useTempHome(t)
	mr := addMiniProfile(t, "local")
	mr.SAdd("colors", "red", "blue")

	out := mustRun(t, "--json", "exec", "local", "--", "SMEMBERS", "colors")
	var view struct {
		Kind  string   `json:"kind"`
		Value []string `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("exec --json: %v\n%s", err, out)
	}
	if view.Kind != "Set" {
		t.Fatalf("kind = %q", view.Kind)
	}
	if diff := cmp.Diff([]string{"blue", "red"}, view.Value); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}
}

func TestExecServerErrorFails(t *testing.T) {
	useTempHome(t)
	mr := addMiniProfile(t, "local")
	mr.HSet("h", "f", "v")

	out, _, err := runKVC(t, "exec", "local", "--", "GET", "h")
	if !result.HasCode(err, result.CodeServerError) {
		t.Fatalf("error = %v", err)
	}
	if !strings.HasPrefix(out, "(error) WRONGTYPE") {
		t.Fatalf("output = %q", out)
	}
	if hist := mustRun(t, "history", "list"); !strings.Contains(hist, "History is empty") {
		t.Fatalf("failed command was recorded: %q", hist)
	}
}

func TestExecUnknownProfile(t *testing.T) {
	useTempHome(t)

	_, stderr, err := runKVC(t, "exec", "nowhere", "--", "PING")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr, "Failed to connect") || !strings.Contains(stderr, "nowhere") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestKeyActions(t *testing.T) {
	useTempHome(t)
	mr := addMiniProfile(t, "local")

	mustRun(t, "key", "set", "local", "session", "abc", "--ttl", "90s")
	if got := mr.TTL("session"); got.Seconds() != 90 {
		t.Fatalf("ttl after set = %v", got)
	}
	if out := mustRun(t, "key", "ttl", "local", "session"); strings.TrimSpace(out) != "(integer) 90" {
		t.Fatalf("ttl output = %q", out)
	}

	mustRun(t, "key", "persist", "local", "session")
	if got := mr.TTL("session"); got != 0 {
		t.Fatalf("ttl after persist = %v", got)
	}

	mustRun(t, "key", "expire", "local", "session", "2m")
	if got := mr.TTL("session"); got.Seconds() != 120 {
		t.Fatalf("ttl after expire = %v", got)
	}

	if out := mustRun(t, "key", "get", "local", "session"); strings.TrimSpace(out) != `"abc"` {
		t.Fatalf("get output = %q", out)
	}

	mr.HSet("user:1", "name", "ada")
	if out := mustRun(t, "key", "get", "local", "user:1"); !strings.Contains(out, `"name"`) || !strings.Contains(out, `"ada"`) {
		t.Fatalf("hash get output = %q", out)
	}

	if out := mustRun(t, "key", "del", "local", "session", "user:1", "missing"); strings.TrimSpace(out) != "(integer) 2" {
		t.Fatalf("del output = %q", out)
	}
	if out := mustRun(t, "key", "get", "local", "session"); strings.TrimSpace(out) != "(nil)" {
		t.Fatalf("get after del = %q", out)
	}

	if _, _, err := runKVC(t, "key", "expire", "local", "session", "soon"); err == nil {
		t.Fatal("expected invalid duration error")
	}
}

func TestKeyGetSortedSetWithQuotedKey(t *testing.T) {
	useTempHome(t)
	mr := addMiniProfile(t, "local")
	key := `board "weekly"`
	mr.ZAdd(key, 2.5, "m")
	mr.ZAdd(key, 1, "n")

	out := mustRun(t, "key", "get", "local", key)
	want := "1) \"n\" (score 1)\n2) \"m\" (score 2.5)"
	if strings.TrimSpace(out) != want {
		t.Fatalf("get output = %q, want %q", out, want)
	}
}

func TestKeysListsTypes(t *testing.T) {
	useTempHome(t)
	mr := addMiniProfile(t, "local")
	mr.Set("user:1", "a")
	mr.Lpush("user:queue", "job")
	mr.Set("other", "b")

	out := mustRun(t, "keys", "local", "user:*")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("keys output = %q", out)
	}
	if !strings.Contains(lines[1], "user:1") || !strings.Contains(lines[1], "string") {
		t.Fatalf("first key line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "user:queue") || !strings.Contains(lines[2], "list") {
		t.Fatalf("second key line = %q", lines[2])
	}
}

func TestHistoryMaxAndClear(t *testing.T) {
	useTempHome(t)
	addMiniProfile(t, "local")
	for i := 0; i < 3; i++ {
		mustRun(t, "exec", "local", "--", "SET", "k"+strconv.Itoa(i), "v")
	}

	if out := mustRun(t, "history", "max", "2"); !strings.Contains(out, "History keeps 2 commands") {
		t.Fatalf("max output = %q", out)
	}
	out := mustRun(t, "history", "list")
	if !strings.Contains(out, "SET k2 v") || !strings.Contains(out, "SET k1 v") || strings.Contains(out, "SET k0 v") {
		t.Fatalf("history after max = %q", out)
	}

	if out := mustRun(t, "history", "max", "0"); !strings.Contains(out, "History keeps 1 commands") {
		t.Fatalf("max 0 output = %q", out)
	}

	mustRun(t, "history", "clear")
	if out := mustRun(t, "history", "list"); !strings.Contains(out, "History is empty") {
		t.Fatalf("history after clear = %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out := mustRun(t, "version")
	if !strings.HasPrefix(out, "Client: ") {
		t.Fatalf("version output = %q", out)
	}
}

func TestCommandsSilenceUsage(t *testing.T) {
	var walk func(*cobra.Command)
	walk = func(c *cobra.Command) {
		if c.RunE != nil && (!c.SilenceUsage || !c.SilenceErrors) {
			t.Errorf("%s does not silence usage and errors", c.CommandPath())
		}
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(newRootCommand())
}
