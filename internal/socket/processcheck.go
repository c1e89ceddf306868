package socket

import (
	"os"
	"strings"

	"github.com/mitchellh/go-ps"
)

var _ ProcessChecker = (*DefaultProcessChecker)(nil)

// ProcessChecker reports whether a process with the given name is running.
type ProcessChecker interface {
	IsRunning(name string) bool
}

// DefaultProcessChecker scans the process table. It skips the calling
// process, so a starting daemon never mistakes itself for a live peer
// when deciding whether its socket file is stale.
type DefaultProcessChecker struct{}

// IsRunning checks the process table for an executable named name.
func (pc *DefaultProcessChecker) IsRunning(name string) bool {
	procs, err := ps.Processes()
	if err != nil {
		return false
	}

	self := os.Getpid()
	for _, proc := range procs {
		if proc.Pid() == self {
			continue
		}
		if exe := proc.Executable(); len(exe) >= len(name) && strings.EqualFold(exe[:len(name)], name) {
			return true
		}
	}
	return false
}
