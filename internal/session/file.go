package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tazhate/studentreminder/internal/domain"
)

// File reads the session the app's login flow writes to disk and reloads it
// whenever the file changes. Logging out removes the file or clears the token.
type File struct {
	path string
	now  func() time.Time

	mu   sync.RWMutex
	sess domain.Session

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewFile(path string) (*File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve session path: %w", err)
	}
	f := &File{
		path: absPath,
		now:  time.Now,
		done: make(chan struct{}),
	}
	f.reload()
	return f, nil
}

func (f *File) Session() (domain.Session, bool) {
	f.mu.RLock()
	sess := f.sess
	f.mu.RUnlock()

	if !usable(sess, f.now()) {
		return domain.Session{}, false
	}
	return sess, true
}

// Watch starts reloading the session on changes. The parent directory is
// watched so the file can be created, replaced or removed.
func (f *File) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.Close()
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	f.watcher = w
	f.wg.Add(1)
	go f.run()
	return nil
}

func (f *File) Close() error {
	if f.watcher == nil {
		return nil
	}
	close(f.done)
	err := f.watcher.Close()
	f.wg.Wait()
	return err
}

func (f *File) run() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			f.reload()

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Session watcher error: %v", err)
		}
	}
}

func (f *File) reload() {
	sess, err := readSession(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error reading session file %s: %v", f.path, err)
	}

	f.mu.Lock()
	was := f.sess.Active()
	f.sess = sess
	f.mu.Unlock()

	if was != sess.Active() {
		if sess.Active() {
			log.Printf("[session] Signed in as %q", sess.Username)
		} else {
			log.Println("[session] Signed out")
		}
	}
}

// readSession returns the zero session for a missing or malformed file.
func readSession(path string) (domain.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Session{}, err
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}
