// Package procutils queries the system process table for details gopsutil
// does not expose on every platform.
package procutils

import (
	"bufio"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a PID is absent from the process table.
var ErrNotFound = fmt.Errorf("process not found on process table")

// IsDefunct reports whether pid is a zombie process, according to the state
// reported by ps. This spawns a process, and should only be used when other
// means of inspection are inconclusive.
func IsDefunct(pid int) (bool, error) {
	out, err := exec.Command("ps", "ax", "-o", "pid=,stat=").Output()
	if err != nil {
		return false, fmt.Errorf("failed executing ps: %w", err)
	}
	state, err := stateFromTable(string(out), pid)
	if err != nil {
		return false, err
	}
	return strings.ContainsRune(state, 'Z'), nil
}

// stateFromTable returns the stat column for pid from ps output holding pid
// and stat columns.
func stateFromTable(table string, pid int) (string, error) {
	s := bufio.NewScanner(strings.NewReader(table))
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 2 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id != pid {
			continue
		}
		return fields[1], nil
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return "", ErrNotFound
}
