// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"context"
	"sync/atomic"

	"github.com/linuxdeepin/dde-display-pm/loader"
	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/evdev"
	"golang.org/x/sync/errgroup"
)

// inputDaemon feeds the evdev activity into the power manager.
type inputDaemon struct {
	*loader.ModuleBase
	main *Daemon

	watcher *evdev.Watcher
	cancel  context.CancelFunc
	group   *errgroup.Group

	// one queued input per kind is enough, the loop collapses bursts
	pending [2]atomic.Bool
}

func newInputDaemon(main *Daemon) *inputDaemon {
	d := &inputDaemon{main: main}
	d.ModuleBase = loader.NewModuleBase("displaypm-input", d, logger)
	return d
}

func (d *inputDaemon) GetDependencies() []string {
	return []string{"displaypm"}
}

func (d *inputDaemon) Start() (err error) {
	d.watcher, err = evdev.NewWatcher(inputDeviceDir, d.handleInput)
	if err != nil {
		return err
	}
	var ctx context.Context
	ctx, d.cancel = context.WithCancel(context.Background())
	d.group, ctx = errgroup.WithContext(ctx)
	d.group.Go(func() error {
		return d.watcher.Run(ctx)
	})
	return nil
}

func (d *inputDaemon) handleInput(kind evdev.Kind) {
	loop := d.main.loop
	if loop == nil {
		return
	}
	pending := &d.pending[kind]
	if pending.Swap(true) {
		return
	}
	loop.Post(func() {
		pending.Store(false)
		d.main.pm.Input(inputKind(kind))
	})
}

func inputKind(kind evdev.Kind) InputKind {
	if kind == evdev.KindKey {
		return InputKey
	}
	return InputPointer
}

func (d *inputDaemon) Stop() error {
	if d.watcher == nil {
		return nil
	}
	d.cancel()
	err := d.group.Wait()
	if err != nil {
		logger.Warning(err)
	}
	err = d.watcher.Close()
	d.watcher = nil
	return err
}
