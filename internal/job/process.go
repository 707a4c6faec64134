package job

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Command describes an external program invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

var argPattern = regexp.MustCompile(`'[^']*'|"[^"]*"|\S+`)

// ParseCommandLine splits a command line on whitespace, keeping single or
// double quoted arguments together and stripping their quotes.
func ParseCommandLine(line string) Command {
	fields := argPattern.FindAllString(strings.TrimSpace(line), -1)
	for i, field := range fields {
		if len(field) >= 2 && (field[0] == '"' || field[0] == '\'') && field[len(field)-1] == field[0] {
			fields[i] = field[1 : len(field)-1]
		}
	}
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Name: fields[0], Args: fields[1:]}
}

// ProcessOption customizes a ProcessJob.
type ProcessOption func(*ProcessJob)

// WithGrace sets how long Stop waits after SIGTERM before killing the process.
func WithGrace(d time.Duration) ProcessOption {
	return func(p *ProcessJob) {
		if d > 0 {
			p.grace = d
		}
	}
}

// WithLineUpdates fires an Update event for every line the process prints.
func WithLineUpdates() ProcessOption {
	return func(p *ProcessJob) { p.lineUpdates = true }
}

const defaultGrace = 3 * time.Second

// ProcessJob runs one external command. Stdout is kept as a single text blob;
// stderr is kept separately for diagnostics. Complete fires only after the
// process has exited. A non-zero exit is reported through ExitCode, not Err.
type ProcessJob struct {
	Base

	command     Command
	grace       time.Duration
	lineUpdates bool

	mu       sync.Mutex
	cmd      *exec.Cmd
	pid      int
	exitCode int
	stdout   lineBuffer
	stderr   lineBuffer
	exited   chan struct{}
}

// NewProcess builds a process job. name is used in events and logs.
func NewProcess(name string, command Command, opts ...ProcessOption) *ProcessJob {
	p := &ProcessJob{
		command:  command,
		grace:    defaultGrace,
		exitCode: -1,
		exited:   make(chan struct{}),
	}
	p.JobName = name
	for _, opt := range opts {
		opt(p)
	}
	p.stdout.onLine = p.emitLine
	p.stderr.onLine = p.emitLine
	return p
}

// Command returns the invocation this job runs.
func (p *ProcessJob) Command() Command { return p.command }

func (p *ProcessJob) emitLine(line string) {
	if p.lineUpdates {
		p.FireUpdate(p, line, nil)
	}
}

// Start launches the process in its own process group.
func (p *ProcessJob) Start() error {
	if strings.TrimSpace(p.command.Name) == "" {
		return errors.New("process: empty command")
	}
	cmd := exec.Command(p.command.Name, p.command.Args...)
	cmd.Dir = p.command.Dir
	if len(p.command.Env) > 0 {
		cmd.Env = append(cmd.Environ(), p.command.Env...)
	}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = p.grace

	p.mu.Lock()
	if p.Terminated() {
		p.mu.Unlock()
		return ErrStopped
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("start %s: %w", p.command.Name, err)
	}
	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.mu.Unlock()

	p.FireUpdate(p, "started "+p.command.String(), nil)
	return nil
}

// Run waits for the process to exit and fires Complete.
func (p *ProcessJob) Run() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		p.FireComplete(p, nil, ErrStopped)
		return
	}

	err := cmd.Wait()
	p.stdout.flush()
	p.stderr.flush()

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()
	close(p.exited)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		p.FireComplete(p, p.Output(), fmt.Errorf("wait %s: %w", p.command.Name, err))
		return
	}
	if code != 0 {
		p.FireUpdate(p, fmt.Sprintf("%s exited with code %d", p.command.Name, code), nil)
	}
	p.FireComplete(p, p.Output(), nil)
}

// Stop asks the process group to terminate and kills it by pid when it has
// not exited within the grace period. It returns without waiting.
func (p *ProcessJob) Stop() {
	if !p.Terminate() {
		return
	}
	p.signalGroup()
}

// signalGroup sends SIGTERM to a live process group and arms the forced kill.
// It reports whether a signal was sent.
func (p *ProcessJob) signalGroup() bool {
	p.mu.Lock()
	pid := p.pid
	p.mu.Unlock()
	if pid <= 0 {
		return false
	}
	select {
	case <-p.exited:
		// Reaped; the group id may already belong to another process.
		return false
	default:
	}
	_ = unix.Kill(-pid, unix.SIGTERM)
	go func() {
		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		select {
		case <-p.exited:
		case <-timer.C:
			_ = unix.Kill(-pid, unix.SIGKILL)
			_ = unix.Kill(pid, unix.SIGKILL)
		}
	}()
	return true
}

// Exited is closed once the process has been reaped.
func (p *ProcessJob) Exited() <-chan struct{} { return p.exited }

// Pid returns the process id, or 0 before Start.
func (p *ProcessJob) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// ExitCode returns the exit status, or -1 while running or when killed by a signal.
func (p *ProcessJob) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Output returns everything written to stdout so far.
func (p *ProcessJob) Output() string { return p.stdout.String() }

// Stderr returns everything written to stderr so far.
func (p *ProcessJob) Stderr() string { return p.stderr.String() }

// lineBuffer accumulates output and reports complete lines as they arrive.
type lineBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	partial []byte
	onLine  func(string)
}

func (b *lineBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	b.buf.Write(data)
	b.partial = append(b.partial, data...)
	var lines []string
	for {
		idx := bytes.IndexByte(b.partial, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, strings.TrimRight(string(b.partial[:idx]), "\r"))
		b.partial = b.partial[idx+1:]
	}
	b.mu.Unlock()
	for _, line := range lines {
		if b.onLine != nil {
			b.onLine(line)
		}
	}
	return len(data), nil
}

func (b *lineBuffer) flush() {
	b.mu.Lock()
	rest := strings.TrimRight(string(b.partial), "\r")
	b.partial = nil
	b.mu.Unlock()
	if rest != "" && b.onLine != nil {
		b.onLine(rest)
	}
}

func (b *lineBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
