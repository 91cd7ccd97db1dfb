package builder

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/kbukum/modelkit/errors"
)

// Default is what a task builds when the caller and the configuration
// artifact name nothing else.
type Default struct {
	Variant  string `yaml:"variant" mapstructure:"variant"`
	Model    string `yaml:"model" mapstructure:"model"`
	Revision string `yaml:"revision" mapstructure:"revision"`
	// Preprocessor and Postprocessor name processors the variant needs
	// when its artifact does not declare any.
	Preprocessor  string `yaml:"preprocessor" mapstructure:"preprocessor"`
	Postprocessor string `yaml:"postprocessor" mapstructure:"postprocessor"`
}

// Tasks maps task names to their defaults.
type Tasks struct {
	mu       sync.RWMutex
	defaults map[string]Default
}

// NewTasks creates an empty table.
func NewTasks() *Tasks {
	return &Tasks{defaults: make(map[string]Default)}
}

// DefaultTasks is the process-wide table filled by unit packages.
var DefaultTasks = NewTasks()

// SetDefault stores d for task. An existing, different entry is only
// replaced when overwrite is set.
func (t *Tasks) SetDefault(task string, d Default, overwrite bool) error {
	if task == "" {
		return errors.InvalidInput("task", "task must not be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.defaults[task]; ok && existing != d && !overwrite {
		return errors.DuplicateKey("tasks", task)
	}
	t.defaults[task] = d
	return nil
}

// Default returns the defaults of task.
func (t *Tasks) Default(task string) (Default, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.defaults[task]
	return d, ok
}

// List returns the sorted task names.
func (t *Tasks) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := lo.Keys(t.defaults)
	sort.Strings(names)
	return names
}

// SetDefault stores a default in DefaultTasks and panics on conflict. It is
// meant for init functions.
func SetDefault(task string, d Default) {
	if err := DefaultTasks.SetDefault(task, d, false); err != nil {
		panic(err)
	}
}
