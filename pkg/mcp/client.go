package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// roundTrip spawns the server process, writes exactly one JSON-RPC request
// line to its stdin, waits for it to finish (or the context deadline), and
// returns the last stdout line that parses as a JSON-RPC message. One
// subprocess per call keeps failures isolated.
func roundTrip(ctx context.Context, cfg ServerConfig, req Message) (*Message, error) {
	reqLine, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	cmd.Stdin = bytes.NewReader(append(reqLine, '\n'))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("server %s timed out: %w", cfg.Name, ctx.Err())
	}

	msg := lastJSONMessage(stdout.String())
	if msg == nil {
		tail := strings.TrimSpace(stderr.String())
		if runErr != nil {
			return nil, fmt.Errorf("server %s failed: %v (stderr: %s)", cfg.Name, runErr, tail)
		}
		return nil, fmt.Errorf("server %s produced no parseable response (stderr: %s)", cfg.Name, tail)
	}
	if msg.Error != nil {
		return nil, fmt.Errorf("server %s returned error %d: %s", cfg.Name, msg.Error.Code, msg.Error.Message)
	}
	return msg, nil
}

// lastJSONMessage scans stdout and keeps the last line that parses as a
// JSON object carrying a result or error. Servers are free to print any
// number of log lines before the terminal response line.
func lastJSONMessage(output string) *Message {
	var last *Message
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || (line[0] != '{') {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Result == nil && msg.Error == nil {
			continue
		}
		m := msg
		last = &m
	}
	return last
}
