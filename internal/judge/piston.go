package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultPistonURL is the public Piston instance. Self-hosted
// deployments override it with PISTON_URL.
const DefaultPistonURL = "https://emkc.org/api/v2/piston"

// ExecFile is one source file shipped to the sandbox.
type ExecFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ExecRequest describes one sandbox execution.
type ExecRequest struct {
	Language string     `json:"language"`
	Version  string     `json:"version"`
	Files    []ExecFile `json:"files"`
}

// ExecRun is the run stage of a Piston response.
type ExecRun struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Code   int    `json:"code"`
}

// ExecResponse is the subset of the Piston execute response we use.
type ExecResponse struct {
	Language string  `json:"language"`
	Version  string  `json:"version"`
	Run      ExecRun `json:"run"`
}

// Executor runs code in a sandbox. Satisfied by PistonClient; tests
// substitute fakes.
type Executor interface {
	Execute(ctx context.Context, req *ExecRequest) (*ExecResponse, error)
}

// PistonClient talks to a Piston execution engine over HTTP.
type PistonClient struct {
	baseURL string
	client  *http.Client
}

// NewPistonClient creates a client against the given base URL, e.g.
// "https://emkc.org/api/v2/piston".
func NewPistonClient(baseURL string) *PistonClient {
	if baseURL == "" {
		baseURL = DefaultPistonURL
	}
	return &PistonClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Execute POSTs one execution to the engine.
func (c *PistonClient) Execute(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("execution engine returned %d: %s", resp.StatusCode, data)
	}

	var execResp ExecResponse
	if err := json.NewDecoder(resp.Body).Decode(&execResp); err != nil {
		return nil, fmt.Errorf("decode execute response: %w", err)
	}
	return &execResp, nil
}
