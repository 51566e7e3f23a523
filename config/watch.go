package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadCooldown evita recargas duplicadas: los editores suelen emitir
// varios eventos Write por un solo guardado.
const reloadCooldown = 2 * time.Second

// Watcher recarga la configuración cuando el archivo cambia en disco.
// El motor toma un Snapshot al inicio de cada ciclo, así los knobs de
// riesgo y sizing se pueden ajustar en caliente sin reiniciar el bot.
type Watcher struct {
	path string
	fsw  *fsnotify.Watcher

	mu       sync.RWMutex
	current  *Config
	lastLoad time.Time
}

// NewWatcher crea un watcher sobre el archivo de configuración. El Config
// inicial ya cargado se usa como primer snapshot.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config.NewWatcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config.NewWatcher: watch %q: %w", path, err)
	}
	return &Watcher{
		path:     path,
		fsw:      fsw,
		current:  initial,
		lastLoad: time.Now(),
	}, nil
}

// Snapshot devuelve la configuración vigente. El puntero devuelto se trata
// como inmutable: cada recarga instala un Config nuevo en su lugar.
func (w *Watcher) Snapshot() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start arranca el loop de vigilancia en background hasta que el contexto
// se cancele.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write ||
					event.Op&fsnotify.Create == fsnotify.Create {
					w.reload()
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("Error vigilando configuración", "error", err)
			}
		}
	}()
}

// Close detiene el watcher de fsnotify.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// reload recarga el archivo y cambia el snapshot si el parse tiene éxito.
// Un archivo inválido deja la configuración anterior en su sitio.
func (w *Watcher) reload() {
	w.mu.Lock()
	if time.Since(w.lastLoad) < reloadCooldown {
		w.mu.Unlock()
		return
	}
	w.lastLoad = time.Now()
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("Configuración recargada inválida, se mantiene la anterior", "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	slog.Info("Configuración recargada en caliente",
		"min_edge", cfg.Risk.MinEdge,
		"dynamic_edge", cfg.Risk.DynamicEdge,
		"sizing_mode", cfg.Sizing.Mode)
}
