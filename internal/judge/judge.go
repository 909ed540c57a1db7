// Package judge runs user code against test cases in a remote Piston
// sandbox and reports which cases passed.
//
// Executions are funneled through a single process-wide worker so the
// engine never sees more than one job at a time, with a short pause
// between jobs to stay under public-instance rate limits.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/radixapp/radix/internal/domain"
)

const (
	queueCapacity = 500
	jobPause      = 300 * time.Millisecond
	outputMarker  = "[[RADIX TEST OUTPUT]] "
)

// pistonJobPath strips sandbox filesystem paths out of stderr so users
// only see their own traceback.
var pistonJobPath = regexp.MustCompile(`/piston/jobs/[a-zA-Z0-9-]+/`)

// FailedTestCase reports one mismatch, all three fields in JSON text.
type FailedTestCase struct {
	Input    string `json:"input"`
	Output   string `json:"output"`
	Expected string `json:"expected"`
}

// Results is the outcome of judging one piece of code.
type Results struct {
	FailedTests []FailedTestCase  `json:"failedTests"`
	OkayTests   []domain.TestCase `json:"okayTests"`
	Runtime     int               `json:"runtime"`
}

// harnessOutput is the JSON the test driver prints on its last line.
type harnessOutput struct {
	Runtime       int               `json:"runtime"`
	ProgramOutput []json.RawMessage `json:"program_output"`
}

type execReply struct {
	resp *ExecResponse
	err  error
}

type job struct {
	ctx   context.Context
	req   *ExecRequest
	reply chan execReply
}

// Runner judges code through a sandbox Executor.
type Runner struct {
	executor Executor
	logger   *slog.Logger

	mu    sync.RWMutex
	jobs  chan job
	pause time.Duration
}

// NewRunner creates a runner. The worker goroutine starts lazily on
// the first job.
func NewRunner(executor Executor, logger *slog.Logger) *Runner {
	return &Runner{
		executor: executor,
		logger:   logger,
		pause:    jobPause,
	}
}

// Judge runs code against the test cases and splits them into passed
// and failed. Compilation and runtime failures come back as an error
// rather than a Results value.
func (r *Runner) Judge(ctx context.Context, language, code string, testCases []domain.TestCase) (*Results, error) {
	spec, ok := languages[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}

	harness, err := renderHarness(spec, testCases)
	if err != nil {
		return nil, err
	}

	resp, err := r.run(ctx, &ExecRequest{
		Language: spec.pistonName,
		Version:  spec.version,
		Files: []ExecFile{{
			Name:    spec.filename,
			Content: code + "\n\n" + harness,
		}},
	})
	if err != nil {
		return nil, err
	}

	if resp.Run.Stderr != "" {
		return nil, fmt.Errorf("Error running code:\n%s",
			pistonJobPath.ReplaceAllString(resp.Run.Stderr, ""))
	}

	output, err := parseHarnessOutput(resp.Run.Stdout)
	if err != nil {
		return nil, err
	}

	results := &Results{
		FailedTests: []FailedTestCase{},
		OkayTests:   []domain.TestCase{},
		Runtime:     output.Runtime,
	}
	n := len(output.ProgramOutput)
	if len(testCases) < n {
		n = len(testCases)
	}
	for i := 0; i < n; i++ {
		got, err := canonicalJSON(output.ProgramOutput[i])
		if err != nil {
			return nil, fmt.Errorf("parse program output: %w", err)
		}
		expected, err := canonicalJSON([]byte(testCases[i].Output))
		if err != nil {
			return nil, fmt.Errorf("parse expected output: %w", err)
		}
		if got == expected {
			results.OkayTests = append(results.OkayTests, testCases[i])
		} else {
			results.FailedTests = append(results.FailedTests, FailedTestCase{
				Input:    testCases[i].Input,
				Output:   got,
				Expected: testCases[i].Output,
			})
		}
	}
	return results, nil
}

// parseHarnessOutput decodes the marker line the harness prints as the
// last line of stdout.
func parseHarnessOutput(stdout string) (*harnessOutput, error) {
	lines := strings.Split(stdout, "\n")
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			last = s
			break
		}
	}
	if last == "" {
		return nil, errors.New("Program did not output anything.")
	}

	var output harnessOutput
	if err := json.Unmarshal([]byte(strings.Replace(last, outputMarker, "", 1)), &output); err != nil {
		return nil, fmt.Errorf("parse test output: %w", err)
	}
	return &output, nil
}

// canonicalJSON reduces a JSON document to a canonical compact string
// so values compare structurally, not textually.
func canonicalJSON(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// run hands the request to the single worker and waits for its reply.
func (r *Runner) run(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	j := job{ctx: ctx, req: req, reply: make(chan execReply, 1)}

	select {
	case r.queue() <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-j.reply:
		return reply.resp, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// queue returns the job channel, starting the worker on first use.
func (r *Runner) queue() chan<- job {
	r.mu.RLock()
	jobs := r.jobs
	r.mu.RUnlock()
	if jobs != nil {
		return jobs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs == nil {
		r.jobs = make(chan job, queueCapacity)
		go r.worker(r.jobs)
		r.logger.Info("judge worker started", "queue_capacity", queueCapacity)
	}
	return r.jobs
}

func (r *Runner) worker(jobs <-chan job) {
	for j := range jobs {
		resp, err := r.executor.Execute(j.ctx, j.req)
		if err != nil {
			r.logger.Error("sandbox execution failed", "error", err)
		}
		j.reply <- execReply{resp: resp, err: err}
		time.Sleep(r.pause)
	}
}
