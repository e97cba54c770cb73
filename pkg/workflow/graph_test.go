package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopNode(ctx context.Context, s *State) (*Delta, error) {
	return &Delta{}, nil
}

func appendNode(tag string) NodeFunc {
	return func(ctx context.Context, s *State) (*Delta, error) {
		return &Delta{Response: strPtr(s.Response + tag)}, nil
	}
}

func TestCompileRejectsCycle(t *testing.T) {
	b := NewBuilder()
	b.AddNode("a", noopNode)
	b.AddNode("b", noopNode)
	b.AddNode("c", noopNode)
	b.SetEntryPoint("a")
	b.AddEdge("a", "b")
	b.AddEdge("b", "c")
	b.AddEdge("c", "a")

	_, err := b.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestCompileRejectsUnknownTarget(t *testing.T) {
	b := NewBuilder()
	b.AddNode("a", noopNode)
	b.SetEntryPoint("a")
	b.AddEdge("a", "missing")

	_, err := b.Compile()
	assert.Error(t, err)
}

func TestCompileRejectsDuplicateAndReservedNames(t *testing.T) {
	b := NewBuilder()
	b.AddNode("a", noopNode)
	b.AddNode("a", noopNode)
	b.SetEntryPoint("a")
	b.AddEdge("a", End)
	_, err := b.Compile()
	assert.Error(t, err)

	b2 := NewBuilder()
	b2.AddNode(End, noopNode)
	b2.SetEntryPoint(End)
	_, err = b2.Compile()
	assert.Error(t, err)
}

func TestRunExecutesInOrder(t *testing.T) {
	b := NewBuilder()
	b.AddNode("first", appendNode("1"))
	b.AddNode("second", appendNode("2"))
	b.AddNode("third", appendNode("3"))
	b.SetEntryPoint("first")
	b.AddEdge("first", "second")
	b.AddEdge("second", "third")
	b.AddEdge("third", End)

	g, err := b.Compile()
	require.NoError(t, err)

	s := &State{}
	require.NoError(t, g.Run(context.Background(), s, nil, nil))
	assert.Equal(t, "123", s.Response)
}

func TestConditionalRoutingIsDeterministic(t *testing.T) {
	build := func() *Graph {
		b := NewBuilder()
		b.AddNode("entry", noopNode)
		b.AddNode("left", appendNode("L"))
		b.AddNode("right", appendNode("R"))
		b.SetEntryPoint("entry")
		b.AddConditionalEdges("entry", func(s *State) string {
			if s.Exec.Intent == IntentQuestion {
				return "left"
			}
			return "right"
		}, []string{"left", "right"})
		b.AddEdge("left", End)
		b.AddEdge("right", End)
		g, err := b.Compile()
		if err != nil {
			t.Fatal(err)
		}
		return g
	}

	for i := 0; i < 10; i++ {
		g := build()
		s := &State{Exec: ExecutionContext{Intent: IntentQuestion}}
		require.NoError(t, g.Run(context.Background(), s, nil, nil))
		assert.Equal(t, "L", s.Response)
	}
}

func TestMergePreservesUntouchedFields(t *testing.T) {
	s := &State{
		Exec:    ExecutionContext{Intent: IntentQuestion, UserInput: "hi"},
		Command: &CommandContext{Command: "ls"},
	}
	merge(s, &Delta{Response: strPtr("done")})

	assert.Equal(t, "done", s.Response)
	assert.Equal(t, IntentQuestion, s.Exec.Intent)
	assert.Equal(t, "hi", s.Exec.UserInput)
	require.NotNil(t, s.Command)
	assert.Equal(t, "ls", s.Command.Command)
}

func TestMergeOverwritesPresentFields(t *testing.T) {
	s := &State{Exec: ExecutionContext{Intent: IntentUnknown}}
	intent := IntentGitPull
	merge(s, &Delta{Intent: &intent, Git: &GitContext{CommitMessage: "m"}})

	assert.Equal(t, IntentGitPull, s.Exec.Intent)
	require.NotNil(t, s.Git)
	assert.Equal(t, "m", s.Git.CommitMessage)
}

func TestRunNodeRecoversPanic(t *testing.T) {
	b := NewBuilder()
	b.AddNode("boom", func(ctx context.Context, s *State) (*Delta, error) {
		panic("nope")
	})
	b.SetEntryPoint("boom")
	b.AddEdge("boom", End)
	g, err := b.Compile()
	require.NoError(t, err)

	s := &State{}
	// Panics become handled errors, not crashes.
	require.NoError(t, g.Run(context.Background(), s, nil, nil))
	assert.NotEmpty(t, s.Err)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	b := NewBuilder()
	b.AddNode("a", appendNode("1"))
	b.SetEntryPoint("a")
	b.AddEdge("a", End)
	g, err := b.Compile()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = g.Run(ctx, &State{}, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouterMustReturnDeclaredTarget(t *testing.T) {
	b := NewBuilder()
	b.AddNode("entry", noopNode)
	b.AddNode("left", noopNode)
	b.SetEntryPoint("entry")
	b.AddConditionalEdges("entry", func(s *State) string {
		return "undeclared"
	}, []string{"left"})
	b.AddEdge("left", End)

	g, err := b.Compile()
	require.NoError(t, err)

	// Undeclared targets are only caught at run time.
	err = g.Run(context.Background(), &State{}, nil, nil)
	assert.Error(t, err)
}

func ExampleBuilder() {
	b := NewBuilder()
	b.AddNode("hello", func(ctx context.Context, s *State) (*Delta, error) {
		return &Delta{Response: strPtr("hello")}, nil
	})
	b.SetEntryPoint("hello")
	b.AddEdge("hello", End)
	g, _ := b.Compile()
	s := &State{}
	_ = g.Run(context.Background(), s, nil, nil)
	fmt.Println(s.Response)
	// Output: hello
}
