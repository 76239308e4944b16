package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modoterra/cmdhub/pkg/hub"
	"github.com/modoterra/cmdhub/pkg/ingest"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

func startHub(t *testing.T) *hub.Hub {
	t.Helper()
	loopback := wire.MustParseEndpoint("tcp://127.0.0.1:0")
	h := hub.New(hub.Options{
		Control: loopback,
		Ingest:  loopback,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if _, err := h.Acquire(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flag variables outlive a single Execute.
	controlAddr, configPath, noColor = "", "", false
	allFilter, allJSON, countJSON = "", false, false
	configInitOutput, configInitCompose, configInitForce = "cmdhub.yaml", "", false

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func seed(t *testing.T, h *hub.Hub) {
	t.Helper()
	p, err := wire.DialPush(context.Background(), h.IngestAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	p.Send(ingest.Format("7171", `[0 a] "SET" "session:1" "x"`))
	p.Send(ingest.Format("7172", `[0 b] "GET" "session:1"`))
	p.Send(ingest.Format("7171", `[0 a] "DEL" "session:1"`))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		out, _ := run(t, "--control", h.ControlAddr().String(), "last")
		if strings.TrimSpace(out) == "DEL session:1" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("records never arrived")
}

func TestClientCommands(t *testing.T) {
	h := startHub(t)
	ctl := h.ControlAddr().String()
	seed(t, h)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"ping"}, "pong"},
		{[]string{"last", "7172"}, "GET session:1"},
		{[]string{"last", "9999"}, "no commands recorded"},
		{[]string{"all"}, "SET session:1 x\nGET session:1\nDEL session:1\n"},
		{[]string{"all", "7171"}, "SET session:1 x\nDEL session:1\n"},
		{[]string{"all", `--filter=command == "GET"`}, "GET session:1\n"},
		{[]string{"count"}, "7171"},
		{[]string{"register", "7171"}, "already registered"},
		{[]string{"register", "7300"}, "registered 7300"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := run(t, append([]string{"--control", ctl, "--no-color"}, tt.args...)...)
			if err != nil {
				t.Fatalf("error: %v (output %q)", err, out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestAllJSON(t *testing.T) {
	h := startHub(t)
	seed(t, h)
	out, err := run(t, "--control", h.ControlAddr().String(), "all", "7172", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"GET session:1"`) {
		t.Errorf("output = %q", out)
	}
}

func TestResetAndShutdown(t *testing.T) {
	h := startHub(t)
	ctl := h.ControlAddr().String()
	seed(t, h)

	if out, err := run(t, "--control", ctl, "reset"); err != nil || !strings.Contains(out, "hub reset") {
		t.Fatalf("reset: %q %v", out, err)
	}
	if out, _ := run(t, "--control", ctl, "last"); !strings.Contains(out, "no commands recorded") {
		t.Errorf("last after reset = %q", out)
	}
	if out, err := run(t, "--control", ctl, "shutdown"); err != nil || !strings.Contains(out, "hub stopped") {
		t.Fatalf("shutdown: %q %v", out, err)
	}
	if _, err := run(t, "--control", ctl, "ping"); err == nil {
		t.Error("ping succeeded after shutdown")
	}
}

func TestBadFilter(t *testing.T) {
	if _, err := run(t, "--control", "tcp://127.0.0.1:1", "all", "--filter", "command +"); err == nil {
		t.Error("expected filter compile error")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	composeFile := filepath.Join(dir, "compose.yml")
	os.WriteFile(composeFile, []byte("services:\n  cache:\n    image: redis:7\n    ports:\n      - \"6390:6379\"\n"), 0o644)
	out := filepath.Join(dir, "cmdhub.yaml")

	got, err := run(t, "config", "init", "--output", out, "--compose", composeFile)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(got, "6390") {
		t.Errorf("init output = %q", got)
	}

	if _, err := run(t, "config", "init", "--output", out); err == nil {
		t.Error("expected error when the file exists")
	}

	got, err = run(t, "config", "validate", out)
	if err != nil {
		t.Fatalf("validate: %v (%s)", err, got)
	}
	if !strings.Contains(got, "valid (1 instances)") {
		t.Errorf("validate output = %q", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("version: 2\ncontrol: tcp://127.0.0.1:5559\ningest: tcp://127.0.0.1:5556\n"), 0o644)
	if _, err := run(t, "config", "validate", bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "cmdhub ") {
		t.Errorf("version output = %q", out)
	}
}
