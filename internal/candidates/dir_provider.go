package candidates

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/paramita1949/C-Canvas-sub007/internal/log"
	"github.com/paramita1949/C-Canvas-sub007/internal/store"
)

// manifest is one group file inside the candidate directory.
type manifest struct {
	Key     string   `yaml:"key"`
	Members []string `yaml:"members"`
}

// DirProvider reads YAML group manifests from a directory and reloads
// them when the similarity scanner rewrites files.
type DirProvider struct {
	dir     string
	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool

	mu     sync.RWMutex
	groups map[string][]store.StopID

	reloadMu    sync.Mutex
	reloadTimer *time.Timer
}

// NewDirProvider loads all manifests under dir and starts watching for
// changes. The caller must Close the provider when done.
func NewDirProvider(dir string) (*DirProvider, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch candidate dir %s: %w", dir, err)
	}

	p := &DirProvider{
		dir:     dir,
		watcher: watcher,
		done:    make(chan struct{}),
		groups:  make(map[string][]store.StopID),
	}

	if err := p.reload(); err != nil {
		watcher.Close()
		return nil, err
	}

	go p.watch()

	return p, nil
}

// Close stops the watcher.
func (p *DirProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	p.reloadMu.Lock()
	if p.reloadTimer != nil {
		p.reloadTimer.Stop()
	}
	p.reloadMu.Unlock()

	return p.watcher.Close()
}

func (p *DirProvider) Siblings(groupKey string) []store.StopID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	members := p.groups[groupKey]
	out := make([]store.StopID, len(members))
	copy(out, members)
	return out
}

func (p *DirProvider) Contains(groupKey string, id store.StopID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, m := range p.groups[groupKey] {
		if m == id {
			return true
		}
	}
	return false
}

// reload re-reads every manifest in the directory.
func (p *DirProvider) reload() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return err
	}

	groups := make(map[string][]store.StopID)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.dir, entry.Name()))
		if err != nil {
			log.Warnf("candidates: skipping %s: %v", entry.Name(), err)
			continue
		}

		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			log.Warnf("candidates: bad manifest %s: %v", entry.Name(), err)
			continue
		}
		if m.Key == "" {
			continue
		}

		members := make([]store.StopID, 0, len(m.Members))
		for _, id := range m.Members {
			members = append(members, store.StopID(id))
		}
		groups[m.Key] = members
	}

	p.mu.Lock()
	p.groups = groups
	p.mu.Unlock()

	return nil
}

// watch is the main event loop
func (p *DirProvider) watch() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("candidates: watcher error: %v", err)

		case <-p.done:
			return
		}
	}
}

// scheduleReload debounces bursts of manifest writes into one reload.
func (p *DirProvider) scheduleReload() {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	if p.reloadTimer != nil {
		p.reloadTimer.Stop()
	}
	p.reloadTimer = time.AfterFunc(100*time.Millisecond, func() {
		if err := p.reload(); err != nil {
			log.Warnf("candidates: reload failed: %v", err)
		}
	})
}
