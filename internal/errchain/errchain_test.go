package errchain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{SpawnFailed, "spawn_failed"},
		{StartFailed, "start_failed"},
		{StreamCopyFailed, "stream_copy_failed"},
		{WaitFailed, "wait_failed"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	root := New(SpawnFailed, "executable not found")
	mid := Wrap(StartFailed, root, "unable to start process")
	top := Wrap(StartFailed, mid, "unable to start openvpn")

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"nil", nil, nil},
		{"root only", root, []string{"executable not found"}},
		{"full chain", top, []string{"unable to start openvpn", "unable to start process", "executable not found"}},
		{"tag is skipped", Wrap(StartFailed, Tag(SpawnFailed, errors.New("permission denied")), "unable to start process"),
			[]string{"unable to start process", "permission denied"}},
		{"foreign error ends chain", fmt.Errorf("outer: %w", root), []string{"outer: executable not found"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Messages(tt.err)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Messages() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTag_ErrorReportsCause(t *testing.T) {
	cause := errors.New("no such file or directory")
	err := Tag(SpawnFailed, cause)

	if err.Error() != cause.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), cause.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the tagged cause")
	}
}

func TestIs(t *testing.T) {
	spawn := Tag(SpawnFailed, errors.New("boom"))
	start := Wrap(StartFailed, spawn, "unable to start process")

	if !Is(start, StartFailed) {
		t.Error("expected StartFailed at the top of the chain")
	}
	if !Is(start, SpawnFailed) {
		t.Error("expected SpawnFailed in the chain")
	}
	if Is(start, WaitFailed) {
		t.Error("did not expect WaitFailed")
	}
	if !Is(fmt.Errorf("context: %w", start), SpawnFailed) {
		t.Error("expected Is to look through foreign wrappers")
	}
	if Is(errors.New("plain"), SpawnFailed) {
		t.Error("plain errors have no kind")
	}
}

func TestBacktrace(t *testing.T) {
	root := New(SpawnFailed, "executable not found")
	top := Wrap(StartFailed, root, "unable to start openvpn")

	st, ok := Backtrace(top)
	if !ok {
		t.Fatal("expected a backtrace")
	}
	if fmt.Sprintf("%v", st[0]) != fmt.Sprintf("%v", root.StackTrace()[0]) {
		t.Errorf("expected innermost backtrace, got %v", st[0])
	}
	if !strings.Contains(fmt.Sprintf("%+v", st), "TestBacktrace") {
		t.Errorf("backtrace should start at the caller, got %+v", st)
	}

	if _, ok := Backtrace(errors.New("plain")); ok {
		t.Error("plain errors have no backtrace")
	}
}

func TestReport(t *testing.T) {
	err := Wrap(StartFailed,
		Wrap(StartFailed, New(SpawnFailed, "executable not found"), "unable to start process"),
		"unable to start openvpn")

	t.Run("without backtrace", func(t *testing.T) {
		var buf bytes.Buffer
		Report(&buf, err, false)

		want := "error: unable to start openvpn\n" +
			"caused by: unable to start process\n" +
			"caused by: executable not found\n"
		if buf.String() != want {
			t.Errorf("Report() =\n%s\nwant\n%s", buf.String(), want)
		}
	})

	t.Run("with backtrace", func(t *testing.T) {
		var buf bytes.Buffer
		Report(&buf, err, true)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if lines[0] != "error: unable to start openvpn" {
			t.Errorf("first line = %q", lines[0])
		}
		if !strings.Contains(buf.String(), "backtrace: ") {
			t.Errorf("expected a backtrace line, got:\n%s", buf.String())
		}
	})

	t.Run("plain error", func(t *testing.T) {
		var buf bytes.Buffer
		Report(&buf, errors.New("bad flag"), true)
		if buf.String() != "error: bad flag\n" {
			t.Errorf("Report() = %q", buf.String())
		}
	})

	t.Run("nil", func(t *testing.T) {
		var buf bytes.Buffer
		Report(&buf, nil, true)
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}
