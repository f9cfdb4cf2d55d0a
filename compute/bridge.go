package compute

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/annealab/crucible/structio"
)

// workerRequest is the single request frame written to the worker's stdin.
// Op is "single_point" or "relax".
type workerRequest struct {
	Op        string              `msgpack:"op"`
	Structure *structio.Structure `msgpack:"structure"`
	Plan      *Plan               `msgpack:"plan"`
	Relax     *RelaxParams        `msgpack:"relax,omitempty"`
}

// WorkerBridge invokes the external compute worker process. One process per
// operation: the request goes out as a single frame on stdin, the worker
// streams zero or more step frames followed by exactly one result frame on
// stdout, then exits. The bridge treats the worker as a synchronous,
// unbounded-duration call; there is no engine-level timeout.
type WorkerBridge struct {
	// Command is the worker invocation, e.g. ["pyscf-worker"].
	Command []string
}

// NewWorkerBridge creates a bridge around the given worker command line.
func NewWorkerBridge(command ...string) *WorkerBridge {
	return &WorkerBridge{Command: command}
}

var _ Calculator = (*WorkerBridge)(nil)
var _ Optimizer = (*WorkerBridge)(nil)

// SinglePoint implements Calculator by delegating one evaluation to the
// worker process.
func (b *WorkerBridge) SinglePoint(ctx context.Context, s *structio.Structure, plan *Plan) (*Result, error) {
	out, err := b.exchange(ctx, &workerRequest{Op: "single_point", Structure: s, Plan: plan}, nil)
	if err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// Relax implements Optimizer by delegating a relaxation to the worker
// process, forwarding each streamed step frame to onStep.
func (b *WorkerBridge) Relax(ctx context.Context, s *structio.Structure, plan *Plan, params RelaxParams, onStep StepFunc) (*RelaxOutcome, error) {
	started := time.Now()
	var final *structio.Structure
	wrapped := func(st Step) error {
		if st.Structure != nil {
			final = st.Structure
		}
		if onStep != nil {
			return onStep(st)
		}
		return nil
	}

	out, err := b.exchange(ctx, &workerRequest{Op: "relax", Structure: s, Plan: plan, Relax: &params}, wrapped)
	if err != nil {
		return nil, err
	}
	if final == nil {
		final = s
	}
	return &RelaxOutcome{
		Final:      final,
		Result:     out.Result,
		StepsTaken: out.StepsTaken,
		Walltime:   time.Since(started),
	}, nil
}

// exchange runs one worker process end to end and returns its result frame.
func (b *WorkerBridge) exchange(ctx context.Context, req *workerRequest, onStep StepFunc) (*resultFrame, error) {
	if len(b.Command) == 0 {
		return nil, fmt.Errorf("compute worker command not configured")
	}

	cmd := exec.CommandContext(ctx, b.Command[0], b.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("cannot open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cannot open worker stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cannot start compute worker %q: %w", b.Command[0], err)
	}

	if err := WriteFrame(stdin, req); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("cannot send request to worker: %w", err)
	}
	_ = stdin.Close()

	result, readErr := readUntilResult(stdout, onStep)

	// Drain the worker before inspecting errors so the child is reaped on
	// every path.
	waitErr := cmd.Wait()
	if readErr != nil {
		return nil, fmt.Errorf("worker stream failed: %w (stderr: %s)", readErr, strings.TrimSpace(stderr.String()))
	}
	if waitErr != nil {
		return nil, fmt.Errorf("worker exited abnormally: %w (stderr: %s)", waitErr, strings.TrimSpace(stderr.String()))
	}
	if result.Error != nil && *result.Error != "" {
		return nil, fmt.Errorf("worker reported error: %s", *result.Error)
	}
	return result, nil
}

// readUntilResult consumes frames until the terminal result frame.
func readUntilResult(r io.Reader, onStep StepFunc) (*resultFrame, error) {
	for {
		payload, err := ReadFrame(r)
		if err == io.EOF {
			return nil, &FrameError{Kind: FrameErrorPartial, Msg: "worker stream ended before result frame"}
		}
		if err != nil {
			return nil, err
		}

		frame, err := decodeFrame(payload)
		if err != nil {
			return nil, err
		}
		switch f := frame.(type) {
		case *stepFrame:
			if onStep != nil {
				if err := onStep(f.Step); err != nil {
					return nil, fmt.Errorf("step callback failed: %w", err)
				}
			}
		case *resultFrame:
			return f, nil
		}
	}
}
