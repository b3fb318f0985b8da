package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"spine/pkg/event"
	"spine/pkg/spine"
)

// tailConfig holds flag values for the tail command.
type tailConfig struct {
	tail   int
	follow bool
}

// newTailCmd creates "spine tail": shows recent ledger events and, with
// --follow, streams new ones as producers append them. Uses fsnotify when a
// watcher can be created and falls back to 1s polling otherwise.
func newTailCmd() *cobra.Command {
	var cfg tailConfig

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events, optionally following new appends",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveConfig()
			if err != nil {
				return err
			}
			store := spine.NewStore(appCfg.SpineDir)
			out := cmd.OutOrStdout()

			offset, err := printRecent(out, store, cfg.tail)
			if err != nil {
				return err
			}
			if !cfg.follow {
				return nil
			}
			return followLedger(cmd.Context(), out, store, offset)
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 10, "number of recent events to show")
	cmd.Flags().BoolVarP(&cfg.follow, "follow", "f", false, "stream new events as they are appended")

	return cmd
}

// printRecent prints the last n events and returns the ledger size consumed,
// which followLedger uses as its starting offset.
func printRecent(w io.Writer, store *spine.Store, n int) (int64, error) {
	events, warnings, err := store.ReadAll()
	if err != nil {
		return 0, err
	}
	printWarnings(w, warnings)

	if len(events) == 0 {
		fmt.Fprintln(w, "no events in spine yet")
	} else {
		start := len(events) - n
		if start < 0 {
			start = 0
		}
		for _, e := range events[start:] {
			formatEvent(w, e)
		}
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// followLedger streams events appended after offset until ctx is canceled.
func followLedger(ctx context.Context, w io.Writer, store *spine.Store, offset int64) error {
	notify := watchLedger(store.Dir())

	poll := time.NewTicker(time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-notify:
		case <-poll.C:
		}

		next, err := printFrom(w, store, offset)
		if err != nil {
			return err
		}
		offset = next
	}
}

// watchLedger returns a channel that fires when the spine directory changes.
// A nil channel (watcher unavailable) blocks forever, leaving polling as the
// only trigger.
func watchLedger(dir string) <-chan struct{} {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("fsnotify: failed to create watcher: %v (falling back to polling)", err)
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		log.Printf("fsnotify: failed to watch %s: %v (falling back to polling)", dir, err)
		return nil
	}

	notify := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
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

// printFrom prints complete lines appended after offset and returns the new
// offset. A trailing line without a newline is an append in flight and is
// left for the next round.
func printFrom(w io.Writer, store *spine.Store, offset int64) (int64, error) {
	f, err := os.Open(store.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return offset, nil
		}
		return offset, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			return offset, nil
		}
		if err != nil {
			return offset, err
		}
		offset += int64(len(line))

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		var e event.Event
		if err := json.Unmarshal([]byte(trimmed), &e); err != nil {
			fmt.Fprintf(w, "warning: malformed record: %v\n", err)
			continue
		}
		formatEvent(w, e)
	}
}

// formatEvent prints one event as a compact single line.
func formatEvent(w io.Writer, e event.Event) {
	id := e.DecisionID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Fprintf(w, "%s  %-17s %-8s %s\n",
		e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, id, e.Agent)
}
