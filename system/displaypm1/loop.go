// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"sync"
	"time"
)

type Timer interface {
	// Stop cancels the timer, it reports false if the timer already fired
	// or was stopped.
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop runs every state mutation on a single goroutine. Timers created
// by AfterFunc deliver their callbacks through the same queue.
type Loop struct {
	queue    chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewLoop(size int) *Loop {
	return &Loop{
		queue: make(chan func(), size),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-l.quit:
			return
		}
	}
}

// Post queues fn, it returns false once the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Call queues fn and waits until it has run. Never call it from the loop
// goroutine.
func (l *Loop) Call(fn func()) bool {
	ch := make(chan struct{})
	ok := l.Post(func() {
		fn()
		close(ch)
	})
	if !ok {
		return false
	}
	select {
	case <-ch:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
	})
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

type loopTimer struct {
	timer *time.Timer
	// only touched on the loop goroutine
	stopped bool
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped {
				return
			}
			t.stopped = true
			fn()
		})
	})
	return t
}

func (t *loopTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}
