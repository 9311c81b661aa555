// Package runtimescan discovers installed agent CLI binaries (claude,
// codex, plus user-listed extras) from PATH and common install
// locations, probing each for a version string.
package runtimescan

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"
)

const versionProbeTimeout = 1800 * time.Millisecond

// extraBinsEnv lists additional binaries to probe, comma separated.
const extraBinsEnv = "CREWFLOOR_EXTRA_AGENT_BINS"

var semverRE = regexp.MustCompile(`(?i)\bv?(\d+\.\d+(?:\.\d+)?(?:[-+][0-9A-Za-z.-]+)?)\b`)

// Runtime describes one discovered agent CLI.
type Runtime struct {
	Name    string `json:"name"`
	Binary  string `json:"binary"`
	Path    string `json:"path"`
	Version string `json:"version"`
}

// binaryNames maps runtime names to the binary each runs as.
var binaryNames = map[string]string{
	"claude-code": "claude",
	"codex":       "codex",
}

// Scan probes for all supported runtimes plus any extras from the
// environment. Result is sorted by name; missing binaries are simply
// absent.
func Scan() []Runtime {
	found := make(map[string]Runtime)
	for name, bin := range binaryNames {
		if rt, ok := Detect(bin); ok {
			rt.Name = name
			found[name] = rt
		}
	}
	for _, bin := range extraBinaries() {
		if _, exists := found[bin]; exists {
			continue
		}
		if rt, ok := Detect(bin); ok {
			rt.Name = bin
			found[bin] = rt
		}
	}

	out := make([]Runtime, 0, len(found))
	for _, rt := range found {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Detect locates one binary and probes its version. A binary that
// exists but fails the version probe is still reported, with version
// "unknown".
func Detect(binary string) (Runtime, bool) {
	path, ok := resolveBinaryPath(binary)
	if !ok {
		return Runtime{}, false
	}
	return Runtime{
		Binary:  binary,
		Path:    path,
		Version: detectVersion(path),
	}, true
}

// BinaryFor maps a runtime name ("claude-code") to its binary. Unknown
// names pass through unchanged so extras keep working.
func BinaryFor(name string) string {
	if bin, ok := binaryNames[name]; ok {
		return bin
	}
	return name
}

func extraBinaries() []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(extraBinsEnv), ",") {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolveBinaryPath(binary string) (string, bool) {
	candidates := make([]string, 0, 8)
	if p, err := exec.LookPath(binary); err == nil {
		candidates = append(candidates, p)
	}
	for _, dir := range knownInstallDirs() {
		candidates = append(candidates, filepath.Join(dir, binary))
	}

	for _, path := range candidates {
		if real, ok := executablePath(path); ok {
			return real, true
		}
	}
	return "", false
}

func knownInstallDirs() []string {
	dirs := []string{
		"/usr/local/bin",
		"/usr/bin",
		"/opt/homebrew/bin",
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, "bin"),
			filepath.Join(home, ".npm-global", "bin"),
		)
	}
	return dirs
}

func executablePath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", false
	}
	if runtime.GOOS != "windows" && fi.Mode()&0111 == 0 {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, true
}

func detectVersion(commandPath string) string {
	for _, args := range [][]string{{"--version"}, {"-v"}, {"version"}} {
		out, err := runVersionProbe(commandPath, args)
		if err != nil && out == "" {
			continue
		}
		if version := parseVersion(out); version != "" {
			return version
		}
	}
	return "unknown"
}

func runVersionProbe(commandPath string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, commandPath, args...)
	output, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(output))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, ctx.Err()
	}
	return out, err
}

func parseVersion(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return ""
	}
	if m := semverRE.FindStringSubmatch(output); len(m) > 1 {
		return m[1]
	}
	line := output
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > 48 {
		line = line[:48]
	}
	return line
}
