package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTodoStore(t *testing.T) *TodoStore {
	t.Helper()
	return NewTodoStore(filepath.Join(t.TempDir(), "state", "todos.json"))
}

func TestTodoStoreAddAssignsIncreasingIDs(t *testing.T) {
	store := newTestTodoStore(t)

	first, err := store.Add("修复登录接口")
	require.NoError(t, err)
	second, err := store.Add("写周报")
	require.NoError(t, err)

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.False(t, second.CreatedAt.IsZero())

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "修复登录接口", items[0].Text)
}

func TestTodoStoreComplete(t *testing.T) {
	store := newTestTodoStore(t)
	item, err := store.Add("部署测试环境")
	require.NoError(t, err)

	ok, err := store.Complete(item.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	items, _ := store.List()
	assert.True(t, items[0].Done)

	ok, err = store.Complete(999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTodoStoreEmptyList(t *testing.T) {
	store := newTestTodoStore(t)
	items, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTodoStoreLeavesNoTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.json")
	store := NewTodoStore(path)
	_, err := store.Add("x")
	require.NoError(t, err)

	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestAddTodoStripsTriggerPhrase(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"chinese prefix", "添加待办 给王姐回邮件", "给王姐回邮件"},
		{"colon prefix", "待办: 整理会议纪要", "整理会议纪要"},
		{"english prefix", "remember to update the changelog", "update the changelog"},
		{"no prefix", "买一块新键盘", "买一块新键盘"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{Deps: Deps{Todos: newTestTodoStore(t)}}
			s := &State{Exec: ExecutionContext{UserInput: tt.input}}

			delta, err := e.addTodo(context.Background(), s)
			require.NoError(t, err)
			require.NotNil(t, delta.Todo)
			assert.Equal(t, tt.want, delta.Todo.Content)
			assert.Contains(t, *delta.Response, "📝 已添加待办 #1")
		})
	}
}

func TestAddTodoEmptyContent(t *testing.T) {
	e := &Engine{Deps: Deps{Todos: newTestTodoStore(t)}}
	s := &State{Exec: ExecutionContext{UserInput: "添加待办"}}

	delta, err := e.addTodo(context.Background(), s)
	require.NoError(t, err)
	assert.Contains(t, *delta.Response, "❓")

	items, _ := e.Todos.List()
	assert.Empty(t, items)
}

func TestQueryTodoMarks(t *testing.T) {
	e := &Engine{Deps: Deps{Todos: newTestTodoStore(t)}}
	done, _ := e.Todos.Add("已完成的事")
	_, _ = e.Todos.Add("还没做的事")
	_, err := e.Todos.Complete(done.ID)
	require.NoError(t, err)

	delta, err := e.queryTodo(context.Background(), &State{})
	require.NoError(t, err)
	require.NotNil(t, delta.Todo)
	require.Len(t, delta.Todo.Items, 2)
	assert.Contains(t, delta.Todo.Items[0], "✅")
	assert.Contains(t, delta.Todo.Items[1], "🔲")
}

func TestQueryTodoEmpty(t *testing.T) {
	e := &Engine{Deps: Deps{Todos: newTestTodoStore(t)}}
	delta, err := e.queryTodo(context.Background(), &State{})
	require.NoError(t, err)
	assert.Contains(t, *delta.Response, "📭")
}
