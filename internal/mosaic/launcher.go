package mosaic

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"
)

var ErrLaunchFailed = errors.New("mosaic: launch failed")

// Launcher starts tile processes. Implementations return once the
// process is started; waiting happens on the handle.
type Launcher interface {
	Launch(t Tile, port int) (TileProcess, error)
}

// TileProcess is one started tile process. Wait blocks until exit and
// reports the exit code.
type TileProcess interface {
	LaunchID() string
	Wait() int
}

// execLauncher starts tiles with os/exec, handing the control-plane port
// over as the single port= argument.
type execLauncher struct{}

func (execLauncher) Launch(t Tile, port int) (TileProcess, error) {
	cmd := exec.Command(t.Path(), fmt.Sprintf("port=%d", port))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrLaunchFailed, t.Path(), err)
	}
	return &execProcess{id: uuid.NewString(), cmd: cmd}, nil
}

type execProcess struct {
	id  string
	cmd *exec.Cmd
}

func (p *execProcess) LaunchID() string { return p.id }

// Wait reaps the process. Exit codes follow shell conventions: an
// unstartable binary reports 127.
func (p *execProcess) Wait() int {
	err := p.cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}
	return 1
}
