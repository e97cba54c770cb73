package workflow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TodoItem is one persisted todo entry.
type TodoItem struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// TodoStore is a small file-backed todo list. Writes go through a temp
// file plus rename so a crash never leaves a half-written list.
type TodoStore struct {
	mu   sync.Mutex
	path string
}

// NewTodoStore creates a store persisting to path.
func NewTodoStore(path string) *TodoStore {
	return &TodoStore{path: path}
}

func (t *TodoStore) load() ([]TodoItem, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []TodoItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *TodoStore) save(items []TodoItem) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}

// Add appends a new todo and returns it.
func (t *TodoStore) Add(text string) (TodoItem, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	items, err := t.load()
	if err != nil {
		return TodoItem{}, err
	}
	next := 1
	for _, item := range items {
		if item.ID >= next {
			next = item.ID + 1
		}
	}
	item := TodoItem{ID: next, Text: text, CreatedAt: time.Now()}
	items = append(items, item)
	return item, t.save(items)
}

// List returns all todos, oldest first.
func (t *TodoStore) List() ([]TodoItem, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()
}

// Complete marks the todo with the given id done.
func (t *TodoStore) Complete(id int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	items, err := t.load()
	if err != nil {
		return false, err
	}
	for i := range items {
		if items[i].ID == id {
			items[i].Done = true
			return true, t.save(items)
		}
	}
	return false, nil
}
