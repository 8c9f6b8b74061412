package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tdr130/mullvadvpn-app/internal/config"
	"github.com/tdr130/mullvadvpn-app/internal/errchain"
	"github.com/tdr130/mullvadvpn-app/internal/logging"
	"github.com/tdr130/mullvadvpn-app/internal/process"
	"github.com/tdr130/mullvadvpn-app/internal/process/processtest"
)

// safeBuffer is a bytes.Buffer that relays and the test can share.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.ConfigPath = "client.ovpn"
	cfg.Remotes = []string{"10.0.0.1:1194"}
	cfg.Verbosity = 1
	cfg.SkipPreflight = true
	cfg.RestartDelay = 10 * time.Millisecond
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, spawner process.Spawner) (*Orchestrator, *safeBuffer, *safeBuffer) {
	t.Helper()
	stdout, stderr := &safeBuffer{}, &safeBuffer{}
	o, err := New(cfg, logging.Discard(), Options{
		Version:  "test",
		Spawner:  spawner,
		Stdout:   stdout,
		Stderr:   stderr,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return o, stdout, stderr
}

// runUntil runs o and cancels it once cond holds.
func runUntil(t *testing.T, o *Orchestrator, cond func() bool) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("condition not reached")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
		return nil
	}
}

func TestNew_InvalidRemote(t *testing.T) {
	cfg := testConfig()
	cfg.Remotes = []string{"no-port"}

	if _, err := New(cfg, logging.Discard(), Options{}); err == nil {
		t.Error("expected error for an unparseable remote")
	}
}

func TestOrchestrator_StartFailure(t *testing.T) {
	o, stdout, _ := newTestOrchestrator(t, testConfig(), processtest.Failing(errors.New("executable not found")))

	err := o.Run(context.Background())
	if !errchain.Is(err, errchain.StartFailed) {
		t.Fatalf("Run() error = %v, want StartFailed", err)
	}

	want := []string{"unable to start openvpn", "unable to start process", "executable not found"}
	if got := errchain.Messages(err); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Messages() = %q, want %q", got, want)
	}
	if strings.Contains(stdout.String(), "Exit Summary") {
		t.Error("no summary expected after a start failure")
	}
	if s := o.Stats().Snapshot(); s.StartFailures != 1 || s.Starts != 0 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestOrchestrator_InterruptPrintsSummary(t *testing.T) {
	spawner := processtest.New(processtest.Script{
		Stdout: []byte("Initialization Sequence Completed\n"),
		Delay:  5 * time.Millisecond,
	})
	o, stdout, _ := newTestOrchestrator(t, testConfig(), spawner)

	err := runUntil(t, o, func() bool { return o.Stats().Snapshot().Exits() >= 2 })
	if err != nil {
		t.Fatalf("Run() error = %v, want nil after interrupt", err)
	}

	out := stdout.String()
	for _, want := range []string{
		"Initialization Sequence Completed\n",
		"Monitored process exited. clean: true\n",
		"talpid-cli Exit Summary",
		"Total Starts:",
		"Monitored Binary:       openvpn",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q", want)
		}
	}
}

func TestOrchestrator_PreflightWarnsThenStartFails(t *testing.T) {
	cfg := testConfig()
	cfg.SkipPreflight = false
	cfg.BinaryPath = "/nonexistent/path/openvpn"
	cfg.ConfigPath = "/nonexistent/path/client.ovpn"

	spawner := processtest.Failing(errors.New("executable not found"))
	o, _, stderr := newTestOrchestrator(t, cfg, spawner)

	err := o.Run(context.Background())
	if !errchain.Is(err, errchain.StartFailed) {
		t.Fatalf("Run() error = %v, want StartFailed", err)
	}
	if !errchain.Is(err, errchain.SpawnFailed) {
		t.Errorf("Run() error = %v, want SpawnFailed in the chain", err)
	}

	out := stderr.String()
	for _, want := range []string{"Preflight checks:", "⚠ openvpn", "⚠ config_file"} {
		if !strings.Contains(out, want) {
			t.Errorf("stderr missing %q in %q", want, out)
		}
	}
	if spawner.Spawns() != 1 {
		t.Errorf("spawns = %d, want 1", spawner.Spawns())
	}
}

func TestOrchestrator_DashboardFallsBackWithoutTerminal(t *testing.T) {
	cfg := testConfig()
	cfg.TUIEnabled = true

	spawner := processtest.New(processtest.Script{
		Stdout: []byte("Initialization Sequence Completed\n"),
		Delay:  5 * time.Millisecond,
	})
	o, stdout, stderr := newTestOrchestrator(t, cfg, spawner)

	err := runUntil(t, o, func() bool { return o.Stats().Snapshot().Exits() >= 2 })
	if err != nil {
		t.Fatalf("Run() error = %v, want nil after interrupt", err)
	}

	if !strings.Contains(stderr.String(), "dashboard unavailable: stdout is not a terminal") {
		t.Errorf("stderr = %q, want the dashboard notice", stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"Initialization Sequence Completed\n",
		"Monitored process exited. clean: true\n",
		"talpid-cli Exit Summary",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q", want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		w    io.Writer
	}{
		{"buffer", &bytes.Buffer{}},
		{"regular file", tempFile(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if isTerminal(tt.w) {
				t.Error("isTerminal() = true, want false")
			}
		})
	}
}

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stdout")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestOrchestrator_MetricsServer(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsAddr = "127.0.0.1:0"

	registry := prometheus.NewRegistry()
	stdout := &safeBuffer{}
	o, err := New(cfg, logging.Discard(), Options{
		Spawner:  processtest.New(processtest.Script{Delay: 5 * time.Millisecond}),
		Stdout:   stdout,
		Stderr:   &safeBuffer{},
		Registry: registry,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := runUntil(t, o, func() bool { return o.Stats().Snapshot().Starts >= 1 }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	addr := o.MetricsAddr()
	if !strings.HasPrefix(addr, "127.0.0.1:") || addr == "127.0.0.1:0" {
		t.Errorf("MetricsAddr() = %q, want the bound address", addr)
	}
	if !strings.Contains(stdout.String(), "Metrics endpoint was: http://"+addr+"/metrics") {
		t.Error("summary should name the metrics endpoint")
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "talpid_process_starts_total" {
			found = mf.GetMetric()[0].GetCounter().GetValue() >= 1
		}
	}
	if !found {
		t.Error("talpid_process_starts_total not recorded")
	}
}

func TestRemoteStrings(t *testing.T) {
	remotes := []process.Remote{}
	for _, s := range []string{"10.0.0.1:1194", "vpn.example.com:443/tcp"} {
		r, err := process.ParseRemote(s)
		if err != nil {
			t.Fatalf("ParseRemote(%q): %v", s, err)
		}
		remotes = append(remotes, r)
	}

	got := remoteStrings(remotes)
	if len(got) != 2 || !strings.HasPrefix(got[0], "10.0.0.1:1194") || !strings.HasPrefix(got[1], "vpn.example.com:443") {
		t.Errorf("remoteStrings() = %v", got)
	}
}
