package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mingkeli/devagent/pkg/llm"
	"github.com/mingkeli/devagent/pkg/platform"
)

const (
	typewriterDelay = 15 * time.Millisecond
	printerJoinWait = 5 * time.Second
)

// answerQuestion streams the answer with a typewriter effect. The stream
// reader and the printer are decoupled by a bounded rune channel so a slow
// terminal cannot stall the HTTP body read.
func (e *Engine) answerQuestion(ctx context.Context, s *State) (*Delta, error) {
	messages := e.questionMessages(s)
	chunks, finish := e.LLM.StreamCall(ctx, messages, llm.ContextQuestion)

	runes := make(chan rune, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range runes {
			fmt.Fprintf(e.Out, "%c", r)
			select {
			case <-ctx.Done():
			case <-time.After(typewriterDelay):
			}
		}
		fmt.Fprintln(e.Out)
	}()

	for chunk := range chunks {
		for _, r := range chunk {
			runes <- r
		}
	}
	close(runes)

	// Join the printer; abandon it if the terminal wedges.
	select {
	case <-done:
	case <-time.After(printerJoinWait):
		if e.Logger != nil {
			e.Logger.Warnf("typewriter printer did not finish within %s", printerJoinWait)
		}
	}

	result := finish()
	if result.Content == "" {
		result.Content = "❓ 暂时无法回答这个问题，请稍后再试。"
		fmt.Fprintln(e.Out, result.Content)
	}
	return &Delta{Response: strPtr(result.Content)}, nil
}

// questionMessages builds the chat context: system prompt, recent history,
// then the current input (with any inlined file references).
func (e *Engine) questionMessages(s *State) []llm.Message {
	system := fmt.Sprintf(
		"你是一个运行在 %s 终端里的开发助手。回答要简洁、准确，面向开发者。",
		platform.OSName())

	messages := []llm.Message{{Role: "system", Content: system}}
	for _, turn := range s.ChatHistory {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.UserInput},
			llm.Message{Role: "assistant", Content: turn.Response},
		)
	}
	messages = append(messages, llm.Message{Role: "user", Content: s.Exec.UserInput})
	return messages
}
