// Package process supervises an external subprocess.
//
// The Manager starts the binary in its own process group, mirrors its
// stdout/stderr into the log, and watches it with an optional health
// probe. A hung process that fails the probe three times in a row is
// killed. Unexpected exits trigger restarts with exponential backoff
// capped at MaxRestartDelay; the attempt counter resets once a run
// stays healthy for StableThreshold, so a process that crashes once a
// day never exhausts its budget. When MaxRestartAttempts is reached the
// manager gives up and reports Exhausted.
//
// Shutdown signals the whole process group: SIGTERM first, SIGKILL
// after GracefulTimeout.
package process
