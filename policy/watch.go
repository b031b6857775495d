package policy

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/viant/afs"
)

// Reload loads rules from location and swaps them into engine.
func Reload(ctx context.Context, fs afs.Service, location string, engine *Engine) error {
	cfg, err := LoadConfig(ctx, fs, location)
	if err != nil {
		return err
	}
	guardrails, err := cfg.Guardrails()
	if err != nil {
		return err
	}
	return engine.ReplaceRules(guardrails)
}

// Watch reloads rule-based guardrails whenever the file at location changes.
// The directory is watched so editors that replace the file are handled.
// onReload, when set, receives the outcome of every reload.
func Watch(ctx context.Context, location string, engine *Engine, onReload func(error)) error {
	location, err := filepath.Abs(location)
	if err != nil {
		return err
	}
	if _, err = os.Stat(location); err != nil {
		return fmt.Errorf("failed to watch guardrail rules: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = watcher.Add(filepath.Dir(location)); err != nil {
		_ = watcher.Close()
		return err
	}
	fs := afs.New()
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != location {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				err := Reload(ctx, fs, location, engine)
				if err != nil {
					log.Printf("failed to reload guardrail rules %v: %v", location, err)
				}
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("guardrail watcher error: %v", err)
			}
		}
	}()
	return nil
}
