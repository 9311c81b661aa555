// Package debug appends diagnostic lines to a session log file when
// crewfloor runs with --debug or CREWFLOOR_DEBUG set. Because the TUI
// owns the terminal, stderr is useless for diagnostics; everything
// goes to ~/.crewfloor/debug/ instead. Disabled, every call is a no-op.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/okatz/crewfloor/internal/hexid"
)

const (
	// EnvEnabled turns on debug logging without the --debug flag.
	EnvEnabled = "CREWFLOOR_DEBUG"
	// EnvLogPath redirects the log to a fixed file.
	EnvLogPath = "CREWFLOOR_DEBUG_LOG_PATH"
)

var (
	mu      sync.Mutex
	out     *os.File
	outPath string
	opened  time.Time
)

// Init opens the log file and enables logging. Calling it again while
// open is a no-op returning the existing path.
func Init() (string, error) {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		return outPath, nil
	}

	path, err := logPath()
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("debug: open %s: %w", path, err)
	}
	out, outPath, opened = f, path, time.Now()
	fmt.Fprintf(f, "--- crewfloor debug log · pid %d · %s ---\n", os.Getpid(), opened.Format(time.RFC3339))
	return path, nil
}

// Close disables logging and closes the file. Safe when never opened.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	fmt.Fprintf(out, "--- closed after %s ---\n", time.Since(opened).Truncate(time.Millisecond))
	out.Close()
	out, outPath = nil, ""
}

// Enabled reports whether the log file is open.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return out != nil
}

// Path returns the open log file's path, or "".
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return outPath
}

// ShouldEnableFromEnv reports whether the environment asks for debug
// logging even without the flag.
func ShouldEnableFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvEnabled))) {
	case "1", "true", "yes", "on":
		return true
	}
	return strings.TrimSpace(os.Getenv(EnvLogPath)) != ""
}

// Log writes one line tagged with the component name.
func Log(component, msg string) {
	write(component, msg)
}

// Logf writes one formatted line.
func Logf(component, format string, args ...any) {
	if !Enabled() {
		return
	}
	write(component, fmt.Sprintf(format, args...))
}

// LogKV writes msg followed by key=value pairs taken from kvs.
func LogKV(component, msg string, kvs ...any) {
	if !Enabled() {
		return
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kvs[i], kvs[i+1])
	}
	write(component, b.String())
}

func write(component, msg string) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	fmt.Fprintf(out, "%s +%-10s [%s] %s\n",
		time.Now().Format("15:04:05.000"),
		time.Since(opened).Truncate(time.Microsecond),
		component,
		msg,
	)
}

func logPath() (string, error) {
	if forced := strings.TrimSpace(os.Getenv(EnvLogPath)); forced != "" {
		if dir := filepath.Dir(forced); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("debug: mkdir %s: %w", dir, err)
			}
		}
		return forced, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("debug: home dir: %w", err)
	}
	dir := filepath.Join(home, ".crewfloor", "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("debug: mkdir %s: %w", dir, err)
	}
	name := time.Now().Format("20060102-150405") + "-" + hexid.New() + ".log"
	return filepath.Join(dir, name), nil
}
