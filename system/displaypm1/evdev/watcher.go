// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package evdev

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/xerrors"
)

// Handler receives the kind of every activity event.
type Handler func(kind Kind)

// Watcher reads every event device under a directory and follows device
// hotplug.
type Watcher struct {
	dir     string
	handler Handler

	fsWatcher *fsnotify.Watcher

	mu      sync.Mutex
	devices map[string]io.Closer
	wg      sync.WaitGroup
}

func NewWatcher(dir string, handler Handler) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = fsWatcher.Add(dir)
	if err != nil {
		fsWatcher.Close()
		return nil, xerrors.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:       dir,
		handler:   handler,
		fsWatcher: fsWatcher,
		devices:   make(map[string]io.Closer),
	}, nil
}

func isEventDevice(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "event")
}

// Run opens the present devices and follows hotplug until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	files, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if isEventDevice(f.Name()) {
			w.open(filepath.Join(w.dir, f.Name()))
		}
	}

	defer w.closeDevices()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if !isEventDevice(ev.Name) {
				continue
			}
			logger.Debug("event", ev)
			if ev.Op&fsnotify.Create != 0 {
				w.open(ev.Name)
			} else if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.closeDevice(ev.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			logger.Warning(err)
		}
	}
}

func (w *Watcher) open(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.devices[path]; ok {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		// devices appear before udev fixes their permissions
		logger.Debugf("open %s: %v", path, err)
		return
	}
	logger.Debug("watch input device", path)
	w.devices[path] = f
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := ReadEvents(f, w.handler)
		if err != nil && !xerrors.Is(err, os.ErrClosed) {
			logger.Debugf("read %s: %v", path, err)
		}
		w.mu.Lock()
		if w.devices[path] == f {
			delete(w.devices, path)
			f.Close()
		}
		w.mu.Unlock()
	}()
}

func (w *Watcher) closeDevice(path string) {
	w.mu.Lock()
	f, ok := w.devices[path]
	delete(w.devices, path)
	w.mu.Unlock()
	if ok {
		f.Close()
	}
}

func (w *Watcher) closeDevices() {
	w.mu.Lock()
	for path, f := range w.devices {
		f.Close()
		delete(w.devices, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

// ReadEvents feeds the activity events read from r to handler until r
// fails.
func ReadEvents(r io.Reader, handler Handler) error {
	buf := make([]byte, 64*eventSize)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(pending, buf[:n]...)
			whole := len(data) / eventSize * eventSize
			for _, ev := range ParseEvents(data[:whole]) {
				if kind, ok := Classify(ev); ok {
					handler(kind)
				}
			}
			pending = append(pending[:0], data[whole:]...)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
