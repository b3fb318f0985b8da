package main

import (
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// fsChangeMsg is sent when the spine directory changes on disk.
type fsChangeMsg struct{}

// debounce collapses bursts of ledger writes into one refresh.
const debounce = 250 * time.Millisecond

// watchSpineDir starts a file system watcher over the ledger directory and
// returns a debounced change channel. Returns nil (no channel, polling-only)
// when the directory is missing or the watcher cannot be created.
func watchSpineDir(dir string) <-chan struct{} {
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("fsnotify: failed to create watcher: %v (polling only)", err)
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		log.Printf("fsnotify: failed to watch %s: %v (polling only)", dir, err)
		return nil
	}

	notify := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		timer := time.NewTimer(debounce)
		if !timer.Stop() {
			<-timer.C
		}
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				timer.Reset(debounce)
			case <-timer.C:
				select {
				case notify <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("fsnotify: watcher error: %v", err)
			}
		}
	}()
	return notify
}

// waitForChange blocks on the watch channel and emits fsChangeMsg. A nil
// channel blocks forever, leaving the periodic tick as the only refresh.
func waitForChange(watch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if watch == nil {
			return nil
		}
		<-watch
		return fsChangeMsg{}
	}
}
