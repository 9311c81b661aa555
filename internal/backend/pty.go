package backend

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/okatz/crewfloor/internal/debug"
	"github.com/okatz/crewfloor/internal/events"
)

const (
	ptyDefaultRows = 24
	ptyDefaultCols = 80
	ptyReadBufLen  = 4096
)

var errPTYNotFound = errors.New("pty not found")

type ptySession struct {
	id   string
	cmd  *exec.Cmd
	ptmx *os.File

	closeOnce sync.Once
}

type ptyManager struct {
	emit func(any)

	mu   sync.Mutex
	ptys map[string]*ptySession
}

func newPTYManager(emit func(any)) *ptyManager {
	return &ptyManager{emit: emit, ptys: make(map[string]*ptySession)}
}

// spawn starts the command on a fresh pseudo-terminal and begins the
// read loop. The whole process group is killed on teardown so shells
// cannot orphan children.
func (m *ptyManager) spawn(req PTYRequest) (string, error) {
	cmd := exec.Command(req.Command, req.Args...)
	cmd.Dir = req.Workdir
	attrs := &syscall.SysProcAttr{Setpgid: true}
	cmd.SysProcAttr = attrs

	ptmx, err := pty.StartWithAttrs(cmd, nil, attrs)
	if err != nil {
		return "", err
	}

	rows, cols := req.Rows, req.Cols
	if rows == 0 {
		rows = ptyDefaultRows
	}
	if cols == 0 {
		cols = ptyDefaultCols
	}
	_ = pty.Setsize(ptmx, &pty.Winsize{Rows: rows, Cols: cols})

	sess := &ptySession{id: uuid.NewString(), cmd: cmd, ptmx: ptmx}
	m.mu.Lock()
	m.ptys[sess.id] = sess
	m.mu.Unlock()

	debug.Logf("pty", "spawned pty_id=%s command=%s pid=%d", sess.id, req.Command, cmd.Process.Pid)

	go m.readLoop(sess)
	go func() {
		err := cmd.Wait()
		m.remove(sess.id)
		sess.teardown()
		m.emit(events.PTYExitMsg{PTYID: sess.id, Code: exitCode(err)})
	}()
	return sess.id, nil
}

func (m *ptyManager) readLoop(sess *ptySession) {
	buf := make([]byte, ptyReadBufLen)
	for {
		n, err := sess.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			m.emit(events.PTYDataMsg{PTYID: sess.id, Data: data})
		}
		if err != nil {
			return
		}
	}
}

func (m *ptyManager) write(ptyID string, data []byte) error {
	sess, ok := m.get(ptyID)
	if !ok {
		return errPTYNotFound
	}
	_, err := sess.ptmx.Write(data)
	return err
}

func (m *ptyManager) resize(ptyID string, rows, cols uint16) error {
	sess, ok := m.get(ptyID)
	if !ok {
		return errPTYNotFound
	}
	return pty.Setsize(sess.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

func (m *ptyManager) kill(ptyID string) {
	sess, ok := m.get(ptyID)
	if !ok {
		return
	}
	sess.teardown()
}

func (m *ptyManager) get(ptyID string) (*ptySession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.ptys[ptyID]
	return sess, ok
}

func (m *ptyManager) remove(ptyID string) {
	m.mu.Lock()
	delete(m.ptys, ptyID)
	m.mu.Unlock()
}

func (s *ptySession) teardown() {
	s.closeOnce.Do(func() {
		_ = s.ptmx.Close()
		if s.cmd.Process != nil && s.cmd.Process.Pid > 0 {
			_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
		}
	})
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
