// Package execxtest provides a recording execx.Runner for tests.
package execxtest

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/c-dragonai/stockllm/internal/execx"
)

// Call is one recorded invocation.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return execx.Describe(c.Name, c.Args...)
}

// Recorder implements execx.Runner without starting processes.
//
// Binaries listed in Installed resolve on LookPath. Results keyed by a command
// line prefix decide what Run returns; unmatched commands succeed.
type Recorder struct {
	mu        sync.Mutex
	Installed map[string]bool
	Results   map[string][]error
	OnRun     func(ctx context.Context, call Call) error
	calls     []Call
}

// NewRecorder returns a Recorder with the given binaries on PATH.
func NewRecorder(installed ...string) *Recorder {
	r := &Recorder{
		Installed: make(map[string]bool),
		Results:   make(map[string][]error),
	}
	for _, name := range installed {
		r.Installed[name] = true
	}
	return r
}

// FailWith queues errors returned by successive runs of commands starting with prefix.
func (r *Recorder) FailWith(prefix string, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results[prefix] = append(r.Results[prefix], errs...)
}

// Run records the call and returns the next queued result for it.
func (r *Recorder) Run(ctx context.Context, name string, args ...string) error {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	var result error
	line := call.String()
	for prefix, queued := range r.Results {
		if strings.HasPrefix(line, prefix) && len(queued) > 0 {
			result = queued[0]
			r.Results[prefix] = queued[1:]
			break
		}
	}
	onRun := r.OnRun
	r.mu.Unlock()

	if result != nil {
		return result
	}
	if onRun != nil {
		return onRun(ctx, call)
	}
	return ctx.Err()
}

// LookPath resolves binaries registered in Installed.
func (r *Recorder) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Installed[name] {
		return "/usr/local/bin/" + name, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Calls returns a copy of every recorded invocation.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded invocations of the named binary.
func (r *Recorder) CallsTo(name string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

var _ execx.Runner = (*Recorder)(nil)
