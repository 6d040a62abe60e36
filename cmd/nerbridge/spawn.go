package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

var errWorkerExited = errors.New("worker process exited")

// workerProcess is a worker started by evaluate.
type workerProcess struct {
	cmd  *exec.Cmd
	done chan error
}

// startWorkerProcess runs name with args as a child process sharing our stdout, stderr and
// environment. The done channel yields once, when the process exits.
func startWorkerProcess(name string, args ...string) (*workerProcess, error) {
	c := exec.Command(name, args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Env = os.Environ()
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("error starting worker: %w", err)
	}
	log.Infof("Started worker process %d", c.Process.Pid)

	w := &workerProcess{cmd: c, done: make(chan error, 1)}
	go func() {
		err := c.Wait()
		if err != nil {
			w.done <- fmt.Errorf("%w: %s", errWorkerExited, err)
		} else {
			w.done <- errWorkerExited
		}
		close(w.done)
	}()
	return w, nil
}

// spawnServeWorker starts "nerbridge serve" from the running binary with our config file.
func spawnServeWorker() (*workerProcess, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, err
	}
	args := []string{"serve"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	return startWorkerProcess(self, args...)
}

// Done is closed after the process exits. It first yields the exit as an error wrapping
// errWorkerExited.
func (w *workerProcess) Done() <-chan error {
	return w.done
}

// Stop interrupts the worker and kills it if it has not exited within timeout.
func (w *workerProcess) Stop(timeout time.Duration) {
	if err := w.cmd.Process.Signal(os.Interrupt); err != nil {
		log.Debugf("Error interrupting worker: %s", err)
	}
	select {
	case <-w.done:
		return
	case <-time.After(timeout):
	}
	log.Warnf("Worker process %d did not stop, killing it", w.cmd.Process.Pid)
	if err := w.cmd.Process.Kill(); err != nil {
		log.Debugf("Error killing worker: %s", err)
	}
	<-w.done
}

// awaitWorker runs waitFor until a worker registers. It gives up as soon as any of
// stopped yields or closes, returning that error instead of a timeout.
func awaitWorker(
	ctx context.Context,
	waitFor func(context.Context) error,
	stopped ...<-chan error,
) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	for _, ch := range stopped {
		go func(ch <-chan error) {
			select {
			case err, ok := <-ch:
				if !ok || err == nil {
					err = errors.New("stopped before a worker registered")
				}
				cancel(err)
			case <-ctx.Done():
			}
		}(ch)
	}

	err := waitFor(ctx)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
	}
	return err
}
