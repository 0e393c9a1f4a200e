package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/roomwall/roomwall-core/internal/infrastructure/logging"
)

// tcpStateListen is the LISTEN state code in /proc/net/tcp.
const tcpStateListen = "0A"

const (
	evictGraceTimeout = 3 * time.Second
	evictPollInterval = 100 * time.Millisecond
)

// evictStalePort finds and terminates whatever process still holds the
// listen port, typically a previous instance that did not shut down
// cleanly. It asks politely with SIGTERM first and escalates to SIGKILL
// after the grace window. Linux only: it walks /proc.
func evictStalePort(port int, logger *logging.Logger) error {
	inode, found, err := findListenInode(port)
	if err != nil {
		return fmt.Errorf("scanning listen sockets: %w", err)
	}
	if !found {
		return nil
	}

	pid, found, err := findPIDByInode(inode)
	if err != nil {
		return fmt.Errorf("resolving socket owner: %w", err)
	}
	if !found {
		return nil
	}
	if pid == os.Getpid() {
		return nil
	}

	logger.Warn("evicting stale process from listen port", "port", port, "pid", pid)

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		return fmt.Errorf("sending SIGTERM to pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(evictGraceTimeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(evictPollInterval)
	}

	logger.Warn("stale process ignored SIGTERM, escalating", "pid", pid)
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("sending SIGKILL to pid %d: %w", pid, err)
	}

	// Give the kernel a moment to release the socket.
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(evictPollInterval)
	}
	return fmt.Errorf("pid %d still alive after SIGKILL", pid)
}

// findListenInode scans /proc/net/tcp and /proc/net/tcp6 for a socket
// listening on the given port and returns its inode.
func findListenInode(port int) (uint64, bool, error) {
	for _, table := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		data, err := os.ReadFile(table)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, false, err
		}
		inode, found := parseListenInode(string(data), port)
		if found {
			return inode, true, nil
		}
	}
	return 0, false, nil
}

// parseListenInode extracts the inode of a LISTEN socket bound to the
// given port from a /proc/net/tcp table. Table lines look like:
//
//	sl local_address rem_address st ... inode
//	 0: 00000000:1F90 00000000:0000 0A ... 12345
func parseListenInode(table string, port int) (uint64, bool) {
	lines := strings.Split(table, "\n")
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		if fields[3] != tcpStateListen {
			continue
		}
		local := strings.Split(fields[1], ":")
		if len(local) != 2 {
			continue
		}
		localPort, err := strconv.ParseInt(local[1], 16, 32)
		if err != nil || int(localPort) != port {
			continue
		}
		inode, err := strconv.ParseUint(fields[9], 10, 64)
		if err != nil {
			continue
		}
		return inode, true
	}
	return 0, false
}

// findPIDByInode walks /proc/*/fd looking for the process holding the
// socket inode. Processes we cannot inspect are skipped.
func findPIDByInode(inode uint64) (int, bool, error) {
	target := fmt.Sprintf("socket:[%d]", inode)

	procs, err := os.ReadDir("/proc")
	if err != nil {
		return 0, false, err
	}

	for _, entry := range procs {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		fdDir := filepath.Join("/proc", entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}

		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if link == target {
				return pid, true, nil
			}
		}
	}
	return 0, false, nil
}

// processAlive reports whether the pid still exists.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
