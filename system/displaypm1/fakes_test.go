// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"errors"
	"time"

	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/backend"
)

// fakeScheduler runs timers when the test advances its clock.
type fakeScheduler struct {
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	when    time.Duration
	seq     int
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{when: s.now + d, seq: s.seq, fn: fn}
	s.seq++
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) nextDue(end time.Duration) *fakeTimer {
	var next *fakeTimer
	live := s.timers[:0]
	for _, t := range s.timers {
		if t.stopped {
			continue
		}
		live = append(live, t)
		if t.when > end {
			continue
		}
		if next == nil || t.when < next.when || (t.when == next.when && t.seq < next.seq) {
			next = t
		}
	}
	s.timers = live
	return next
}

// advance moves the clock by d, firing due timers in order.
func (s *fakeScheduler) advance(d time.Duration) {
	end := s.now + d
	for {
		t := s.nextDue(end)
		if t == nil {
			break
		}
		s.now = t.when
		t.stopped = true
		t.fn()
	}
	s.now = end
}

func (s *fakeScheduler) pending() int {
	s.nextDue(-1)
	return len(s.timers)
}

type fakeAlive map[int]bool

func (a fakeAlive) isAlive(pid int) bool {
	return a[pid]
}

var errHardware = errors.New("hardware error")

type fakeBackend struct {
	max        int
	brightness int
	panelOn    bool

	brightnessLog []int
	panelLog      []bool
	// failPanelOn makes that many SetPanelPower(true) calls fail
	failPanelOn int
	preSuspends int

	wakeupCount   int64
	readCountErr  error
	writeCountErr error
	written       []int64
	suspends      int
	suspendErr    error
	source        backend.WakeupSource
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{max: 100, brightness: 80, panelOn: true, wakeupCount: 3}
}

func (b *fakeBackend) SetPanelPower(on bool) error {
	b.panelLog = append(b.panelLog, on)
	if on && b.failPanelOn > 0 {
		b.failPanelOn--
		return errHardware
	}
	b.panelOn = on
	return nil
}

func (b *fakeBackend) SetBrightness(value int) error {
	b.brightnessLog = append(b.brightnessLog, value)
	b.brightness = value
	return nil
}

func (b *fakeBackend) Brightness() (int, error) {
	return b.brightness, nil
}

func (b *fakeBackend) MaxBrightness() int {
	return b.max
}

func (b *fakeBackend) PreSuspend() error {
	b.preSuspends++
	return nil
}

func (b *fakeBackend) ReadWakeupCount() (int64, error) {
	return b.wakeupCount, b.readCountErr
}

func (b *fakeBackend) WriteWakeupCount(n int64) error {
	if b.writeCountErr != nil {
		return b.writeCountErr
	}
	b.written = append(b.written, n)
	return nil
}

func (b *fakeBackend) Suspend() error {
	b.suspends++
	return b.suspendErr
}

func (b *fakeBackend) WakeupSource() (backend.WakeupSource, error) {
	return b.source, nil
}

type fakeMirror struct {
	values []string
}

func (m *fakeMirror) SetValue(key string, value interface{}) error {
	if key == dsettingsPMState {
		m.values = append(m.values, value.(string))
	}
	return nil
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	ints  map[string]int
	bools map[string]bool
	set   map[string]interface{}
	cbs   map[string]func(interface{})
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ints:  make(map[string]int),
		bools: make(map[string]bool),
		set:   make(map[string]interface{}),
		cbs:   make(map[string]func(interface{})),
	}
}

var errNoKey = errors.New("no such key")

func (s *fakeStore) GetValueInt(key string) (int, error) {
	v, ok := s.ints[key]
	if !ok {
		return 0, errNoKey
	}
	return v, nil
}

func (s *fakeStore) GetValueBool(key string) (bool, error) {
	v, ok := s.bools[key]
	if !ok {
		return false, errNoKey
	}
	return v, nil
}

func (s *fakeStore) SetValue(key string, value interface{}) error {
	s.set[key] = value
	return nil
}

func (s *fakeStore) ConnectConfigChanged(key string, cb func(interface{})) {
	s.cbs[key] = cb
}

func (s *fakeStore) change(key string, value interface{}) {
	if cb := s.cbs[key]; cb != nil {
		cb(value)
	}
}

// testConfig has short timeouts: normal 5s, dim 5s, off 1s.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NormalTimeout = 5 * time.Second
	cfg.DimTimeout = 5 * time.Second
	cfg.OffTimeout = time.Second
	return cfg
}

type testEnv struct {
	pm      *PowerManager
	bk      *fakeBackend
	sched   *fakeScheduler
	alive   fakeAlive
	mirror  *fakeMirror
	changes []string
}

func newTestEnv(cfg Config) *testEnv {
	env := &testEnv{
		bk:     newFakeBackend(),
		sched:  &fakeScheduler{},
		alive:  fakeAlive{},
		mirror: &fakeMirror{},
	}
	env.pm = newPowerManager(env.bk, env.sched, env.mirror, cfg, env.alive.isAlive)
	env.pm.ConnectStateChanged(func(prev, cur PowerState) {
		env.changes = append(env.changes, prev.String()+">"+cur.String())
	})
	return env
}

// started returns an environment already in normal.
func started(cfg Config) *testEnv {
	env := newTestEnv(cfg)
	env.pm.Start()
	env.changes = nil
	return env
}
