//go:build !windows

package process

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// PgrepFinder discovers children with `pgrep -P`.
type PgrepFinder struct {
	// Path overrides the pgrep binary; empty uses PATH lookup.
	Path string
}

func (f PgrepFinder) ChildrenOf(pid int) ([]int, error) {
	if pid <= 0 {
		return nil, nil
	}
	bin := f.Path
	if bin == "" {
		bin = "pgrep"
	}
	output, err := exec.Command(bin, "-P", strconv.Itoa(pid)).Output()
	if err != nil {
		var exitErr *exec.ExitError
		// pgrep exits 1 when nothing matched.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep -P %d: %w", pid, err)
	}
	return parsePids(output), nil
}

func parsePids(output []byte) []int {
	var pids []int
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		value, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || value <= 0 {
			continue
		}
		pids = append(pids, value)
	}
	return pids
}

// DefaultTreeFinder returns the platform process-tree finder.
func DefaultTreeFinder() TreeFinder {
	return PgrepFinder{}
}
