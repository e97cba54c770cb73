package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider speaks the OpenAI-compatible chat completion surface, which
// every configured provider block exposes.
type HTTPProvider struct {
	name        string
	model       string
	baseURL     string
	apiKey      string
	temperature float64
	headers     map[string]string
	client      *http.Client
}

// NewHTTPProvider creates a provider for one endpoint.
func NewHTTPProvider(name, model, baseURL, apiKey string, temperature float64, headers map[string]string) *HTTPProvider {
	return &HTTPProvider{
		name:        name,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		temperature: temperature,
		headers:     headers,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

// Name identifies the provider.
func (p *HTTPProvider) Name() string { return p.name }

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

func (p *HTTPProvider) newRequest(ctx context.Context, messages []Message, stream bool) (*http.Request, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model":       p.model,
		"messages":    messages,
		"temperature": p.temperature,
		"stream":      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Complete performs one non-streaming chat completion.
func (p *HTTPProvider) Complete(ctx context.Context, messages []Message) (string, *Usage, error) {
	req, err := p.newRequest(ctx, messages, false)
	if err != nil {
		return "", nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", nil, fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", nil, fmt.Errorf("%s returned malformed response: %w", p.name, err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, fmt.Errorf("%s returned no choices", p.name)
	}
	usage := parsed.Usage
	if usage == nil {
		usage = &Usage{}
	}
	return parsed.Choices[0].Message.Content, usage, nil
}

// Stream starts an SSE streaming completion. Chunks are emitted in arrival
// order; the finish function reports usage once the stream ends.
func (p *HTTPProvider) Stream(ctx context.Context, messages []Message) (<-chan string, func() (*Usage, error), error) {
	req, err := p.newRequest(ctx, messages, true)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, nil, fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	chunks := make(chan string, 16)
	var streamErr error
	var usage Usage
	done := make(chan struct{})

	go func() {
		defer close(chunks)
		defer close(done)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			line = strings.TrimPrefix(line, "data: ")
			if line == "[DONE]" {
				break
			}
			var parsed chatResponse
			if err := json.Unmarshal([]byte(line), &parsed); err != nil {
				continue
			}
			if parsed.Usage != nil {
				usage = *parsed.Usage
			}
			if len(parsed.Choices) > 0 && parsed.Choices[0].Delta.Content != "" {
				select {
				case chunks <- parsed.Choices[0].Delta.Content:
				case <-ctx.Done():
					streamErr = ctx.Err()
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			streamErr = fmt.Errorf("%s stream read failed: %w", p.name, err)
		}
	}()

	finish := func() (*Usage, error) {
		<-done
		return &usage, streamErr
	}
	return chunks, finish, nil
}
