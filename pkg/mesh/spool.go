package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Spool directory layout, shared with the radio gateway process:
//
//	<root>/outbox      frames for the gateway to transmit
//	<root>/inbox       frames the gateway received
//	<root>/quarantine  inbox files that were not valid JSON
//
// The gateway is a black box; the only contract is whole files, written as
// .tmp and renamed into place so neither side ever reads a half frame.
const (
	outboxDir     = "outbox"
	inboxDir      = "inbox"
	quarantineDir = "quarantine"
)

// defaultRescan bounds how stale the inbox can get if fsnotify events are
// dropped, which the fsnotify docs call out as possible under load.
const defaultRescan = 15 * time.Second

// SpoolAdapter implements Adapter over a spool directory.
type SpoolAdapter struct {
	root   string
	logger *zap.Logger
	rescan time.Duration

	mu      sync.Mutex
	handler func([]byte)
}

var _ Adapter = (*SpoolAdapter)(nil)

// SpoolOption adjusts a SpoolAdapter.
type SpoolOption func(*SpoolAdapter)

// WithRescanInterval overrides the fallback inbox scan period.
func WithRescanInterval(d time.Duration) SpoolOption {
	return func(s *SpoolAdapter) { s.rescan = d }
}

// NewSpoolAdapter creates the spool layout under root.
func NewSpoolAdapter(root string, logger *zap.Logger, opts ...SpoolOption) (*SpoolAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SpoolAdapter{root: root, logger: logger, rescan: defaultRescan}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{outboxDir, inboxDir, quarantineDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create spool directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// Send queues a frame for the gateway. The nanosecond prefix gives the
// gateway a cheap transmit order.
func (s *SpoolAdapter) Send(frame []byte) error {
	name := fmt.Sprintf("%d-%s.json", time.Now().UnixNano(), uuid.New().String())
	final := filepath.Join(s.root, outboxDir, name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, frame, 0o640); err != nil {
		return fmt.Errorf("failed to write outbox frame: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("failed to publish outbox frame: %w", err)
	}
	return nil
}

// OnReceive registers the inbound handler.
func (s *SpoolAdapter) OnReceive(handler func(frame []byte)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Run consumes the inbox until ctx ends. Files are handled once and
// removed; unreadable JSON is moved to quarantine instead of retried
// forever.
func (s *SpoolAdapter) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create inbox watcher: %w", err)
	}
	defer watcher.Close()

	inbox := filepath.Join(s.root, inboxDir)
	if err := watcher.Add(inbox); err != nil {
		return fmt.Errorf("failed to watch inbox: %w", err)
	}

	// Frames that arrived while we were not running.
	s.scanInbox()

	ticker := time.NewTicker(s.rescan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) || ev.Op.Has(fsnotify.Write) {
				s.scanInbox()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Inbox watcher error", zap.Error(err))
		case <-ticker.C:
			s.scanInbox()
		}
	}
}

func (s *SpoolAdapter) scanInbox() {
	inbox := filepath.Join(s.root, inboxDir)
	entries, err := os.ReadDir(inbox)
	if err != nil {
		s.logger.Warn("Failed to read inbox", zap.Error(err))
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		s.consume(filepath.Join(inbox, name))
	}
}

func (s *SpoolAdapter) consume(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("Failed to read inbox frame", zap.String("file", path), zap.Error(err))
		return
	}
	if !json.Valid(data) {
		// Truncated radio transfer. Keep it for diagnosis, off the scan path.
		dst := filepath.Join(s.root, quarantineDir, filepath.Base(path))
		if err := os.Rename(path, dst); err != nil {
			s.logger.Warn("Failed to quarantine frame", zap.String("file", path), zap.Error(err))
			return
		}
		s.logger.Warn("Quarantined malformed inbox frame", zap.String("file", filepath.Base(path)))
		return
	}

	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		// No consumer yet. Leave the frame for a later scan rather than
		// eat it.
		return
	}
	handler(data)
	if err := os.Remove(path); err != nil {
		s.logger.Warn("Failed to remove consumed frame", zap.String("file", path), zap.Error(err))
	}
}
