// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks   []Check
	Warnings int
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// requiredFDs covers the child's pipes, the tun device, its sockets and the
// metrics server.
const requiredFDs = 64

// tunDevice is the Linux clone device OpenVPN opens for its interface.
var tunDevice = "/dev/net/tun"

// RunAll executes all preflight checks for starting binary with the OpenVPN
// config file at configPath. None of the checks is fatal: a binary that
// cannot be spawned is reported by the supervisor as a start failure.
func RunAll(binary, configPath string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
	}

	for _, check := range []Check{
		checkBinary(binary),
		checkConfigFile(configPath),
		checkFileDescriptors(),
		checkTunDevice(),
	} {
		result.Checks = append(result.Checks, check)
		if !check.Passed || check.Warning {
			result.Warnings++
		}
	}

	return result
}

// checkBinary verifies the OpenVPN binary can be resolved and executed.
// It does not run it: openvpn --version exits non-zero.
func checkBinary(path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    "openvpn",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}
	return Check{
		Name:    "openvpn",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", resolved),
	}
}

// checkConfigFile verifies the OpenVPN config file is a readable file.
func checkConfigFile(path string) Check {
	f, err := os.Open(path)
	if err != nil {
		return Check{
			Name:    "config_file",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("cannot open %s: %v", path, err),
		}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return Check{
			Name:    "config_file",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s is not a regular file", path),
		}
	}

	return Check{
		Name:    "config_file",
		Passed:  true,
		Message: fmt.Sprintf("%s (%d bytes)", path, info.Size()),
	}
}

// checkFileDescriptors reports the descriptor limit. A low limit is only a
// warning; OpenVPN itself needs few.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	actual := int(limit.Cur)
	if limit.Cur > uint64(1<<31-1) {
		actual = 1<<31 - 1
	}

	return Check{
		Name:     "file_descriptors",
		Required: requiredFDs,
		Actual:   actual,
		Passed:   true,
		Warning:  actual < requiredFDs,
		Message:  fmt.Sprintf("ulimit -n %d (recommend %d)", actual, requiredFDs),
	}
}

// checkTunDevice warns when the tun clone device is missing.
func checkTunDevice() Check {
	if _, err := os.Stat(tunDevice); err != nil {
		return Check{
			Name:    "tun_device",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s not available (non-Linux or not loaded?)", tunDevice),
		}
	}
	return Check{
		Name:    "tun_device",
		Passed:  true,
		Message: tunDevice,
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed || check.Warning {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "openvpn":
		return "install openvpn (apt install openvpn / brew install openvpn) or pass --binary"
	case "config_file":
		return "pass a readable OpenVPN config with --config"
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	case "tun_device":
		return "modprobe tun"
	default:
		return "see documentation"
	}
}
