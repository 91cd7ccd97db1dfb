package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// registry caches component loggers and their level overrides.
var registry = &loggerRegistry{
	loggers: make(map[string]*Logger),
	levels:  make(map[string]zerolog.Level),
}

type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
	levels  map[string]zerolog.Level
}

// Register installs l as the logger of component name.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get returns the logger of component name. The first call derives it from
// the global logger, tagged with the component and honoring its level
// override from Config.Components.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if l, ok := registry.loggers[name]; ok {
		return l
	}
	l = GetGlobalLogger().WithComponent(name)
	if lvl, ok := registry.levels[name]; ok {
		l = &Logger{logger: l.logger.Level(lvl), service: l.service}
	}
	registry.loggers[name] = l
	return l
}

// setLevels replaces the component level overrides and drops cached loggers.
func (r *loggerRegistry) setLevels(levels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = make(map[string]zerolog.Level, len(levels))
	for name, s := range levels {
		if lvl, err := zerolog.ParseLevel(s); err == nil {
			r.levels[name] = lvl
		}
	}
	r.loggers = make(map[string]*Logger)
}

// reset drops cached loggers so Get picks up a newly installed global.
func (r *loggerRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggers = make(map[string]*Logger)
}
