// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/backend"
)

// Backend is the hardware the state machine drives. Failures are
// reported, never retried by the implementation.
type Backend interface {
	SetPanelPower(on bool) error
	SetBrightness(value int) error
	Brightness() (int, error)
	MaxBrightness() int
	PreSuspend() error
	ReadWakeupCount() (int64, error)
	WriteWakeupCount(n int64) error
	Suspend() error
	WakeupSource() (backend.WakeupSource, error)
}

// StateMirror publishes the current state for other processes.
type StateMirror interface {
	SetValue(key string, value interface{}) error
}

type TransitionResult int

const (
	// TransitionNoop means the state did not change.
	TransitionNoop TransitionResult = iota
	TransitionChanged
	// TransitionBlocked means a lease forbids the destination state.
	TransitionBlocked
)

func (r TransitionResult) String() string {
	switch r {
	case TransitionChanged:
		return "changed"
	case TransitionBlocked:
		return "blocked"
	}
	return "noop"
}

// EnterAction runs after the state machine entered a state, from is the
// state it left.
type EnterAction func(from PowerState)

type stateDesc struct {
	timeout time.Duration
	enter   EnterAction
}

// PowerManager owns the power state, the lease table and the idle timer.
// Every method must run on the loop goroutine.
type PowerManager struct {
	backend Backend
	sched   Scheduler
	leases  *LeaseTable
	mirror  StateMirror

	descs [stateCount]stateDesc
	cur   PowerState
	prev  PowerState
	// seq counts transitions, it tells an enter action's caller whether a
	// nested transition already happened.
	seq uint64

	idleTimer Timer

	brightness   int
	dimPercent   int
	retryCount   int
	suspendGuard time.Duration
	sleepMargin  time.Duration

	// guardCtx parents every wakeup count read, disarmGuard cancels it
	// from any goroutine.
	guardCtx    context.Context
	disarmGuard context.CancelFunc

	stateChangedCbs []func(prev, cur PowerState)
}

func NewPowerManager(bk Backend, sched Scheduler, mirror StateMirror, cfg Config) *PowerManager {
	return newPowerManager(bk, sched, mirror, cfg, nil)
}

func newPowerManager(bk Backend, sched Scheduler, mirror StateMirror, cfg Config,
	isAlive func(pid int) bool) *PowerManager {
	cfg.sanitize()
	pm := &PowerManager{
		backend:      bk,
		sched:        sched,
		mirror:       mirror,
		cur:          StateStart,
		prev:         StateStart,
		dimPercent:   cfg.DimPercent,
		retryCount:   cfg.RetryCount,
		suspendGuard: cfg.SuspendGuard,
		sleepMargin:  cfg.SleepMargin,
	}
	pm.guardCtx, pm.disarmGuard = context.WithCancel(context.Background())
	pm.leases = newLeaseTable(sched, isAlive)
	pm.leases.onExpire = pm.handleLeaseExpired

	pm.descs[StateStart] = stateDesc{enter: func(PowerState) {}}
	pm.descs[StateNormal] = stateDesc{timeout: cfg.NormalTimeout, enter: pm.enterNormal}
	pm.descs[StateDim] = stateDesc{timeout: cfg.DimTimeout, enter: pm.enterDim}
	pm.descs[StateOff] = stateDesc{timeout: cfg.OffTimeout, enter: pm.enterOff}
	pm.descs[StateSleep] = stateDesc{enter: pm.enterSleep}

	br, err := bk.Brightness()
	if err != nil || br <= 0 {
		logger.Warning("failed to read brightness, use maximum:", err)
		br = bk.MaxBrightness()
	}
	pm.brightness = br
	return pm
}

// Start leaves the start state once configuration is loaded.
func (pm *PowerManager) Start() {
	if pm.cur != StateStart {
		return
	}
	pm.setState(StateNormal)
}

// Destroy cancels every timer the manager armed.
func (pm *PowerManager) Destroy() {
	pm.stopIdleTimer()
	pm.leases.Clear()
	pm.disarmGuard()
}

// DisarmSuspendGuard aborts a wakeup count read in progress and every
// later one. Unlike the other methods it may be called from any goroutine.
func (pm *PowerManager) DisarmSuspendGuard() {
	pm.disarmGuard()
}

func (pm *PowerManager) State() PowerState {
	return pm.cur
}

func (pm *PowerManager) PrevState() PowerState {
	return pm.prev
}

func (pm *PowerManager) Leases() *LeaseTable {
	return pm.leases
}

func (pm *PowerManager) Timeout(state PowerState) time.Duration {
	if !state.valid() {
		return 0
	}
	return pm.descs[state].timeout
}

// SetTimeout rewrites the idle timeout of state, the running idle timer
// is re-armed when state is current.
func (pm *PowerManager) SetTimeout(state PowerState, d time.Duration) error {
	if state != StateNormal && state != StateDim && state != StateOff {
		return fmt.Errorf("state %s has no idle timeout", state)
	}
	if d < 0 {
		return fmt.Errorf("invalid timeout %v", d)
	}
	if pm.descs[state].timeout == d {
		return nil
	}
	logger.Infof("timeout of %s: %v -> %v", state, pm.descs[state].timeout, d)
	pm.descs[state].timeout = d
	if state == pm.cur {
		pm.resetIdleTimer(d)
		if pm.dimSkipped() {
			pm.handleEvent(EventTimeout)
		}
	}
	return nil
}

// DecorateEnter replaces the enter action of state by wrap(current).
func (pm *PowerManager) DecorateEnter(state PowerState, wrap func(EnterAction) EnterAction) {
	if !state.valid() {
		return
	}
	pm.descs[state].enter = wrap(pm.descs[state].enter)
}

func (pm *PowerManager) ConnectStateChanged(cb func(prev, cur PowerState)) {
	pm.stateChangedCbs = append(pm.stateChangedCbs, cb)
}

// HandleEvent moves to the successor of the current state for ev unless
// a lease forbids it. A timeout in a state whose timeout is zero is
// ignored, such a state is only left by other events. Dim is the
// exception: with a zero timeout it is left as soon as off is allowed.
func (pm *PowerManager) HandleEvent(ev Event) TransitionResult {
	if ev >= eventCount {
		return TransitionNoop
	}
	if ev == EventTimeout && pm.descs[pm.cur].timeout == 0 && !pm.dimSkipped() {
		logger.Debugf("ignore timeout in %s", pm.cur)
		return TransitionNoop
	}
	return pm.handleEvent(ev)
}

func (pm *PowerManager) handleEvent(ev Event) TransitionResult {
	dest := nextState(pm.cur, ev)
	if dest != pm.cur && !pm.checkGuard(dest) {
		// one retry after reclaiming leases of exited processes
		if !pm.leases.SweepDead(dest) || !pm.checkGuard(dest) {
			logger.Debugf("%s: %s -> %s blocked by %s", ev, pm.cur, dest, pm.leases.Mask())
			return TransitionBlocked
		}
	}
	return pm.setState(dest)
}

func (pm *PowerManager) checkGuard(dest PowerState) bool {
	return !pm.leases.Mask().Has(dest)
}

// ForceChange enters state regardless of leases.
func (pm *PowerManager) ForceChange(state PowerState) error {
	if !state.valid() || state == StateStart {
		return fmt.Errorf("can not change to %s", state)
	}
	logger.Infof("force change %s -> %s", pm.cur, state)
	pm.setState(state)
	return nil
}

func (pm *PowerManager) setState(dest PowerState) TransitionResult {
	pm.stopIdleTimer()
	from := pm.cur
	pm.cur = dest
	pm.seq++
	seq := pm.seq

	result := TransitionNoop
	if from != dest {
		result = TransitionChanged
		pm.prev = from
		logger.Infof("state %s -> %s", from, dest)
		pm.mirrorState(dest)
		for _, cb := range pm.stateChangedCbs {
			cb(from, dest)
		}
	}

	pm.descs[dest].enter(from)
	if pm.seq != seq {
		return result
	}
	pm.resetIdleTimer(pm.descs[dest].timeout)

	// a zero dim timeout skips dim altogether
	if pm.dimSkipped() {
		pm.handleEvent(EventTimeout)
	}
	return result
}

// dimSkipped reports whether the manager sits in dim only because a lease
// blocked the cascade to off.
func (pm *PowerManager) dimSkipped() bool {
	return pm.cur == StateDim && pm.descs[StateDim].timeout == 0
}

func (pm *PowerManager) mirrorState(state PowerState) {
	if pm.mirror == nil || state == StateSleep {
		return
	}
	err := pm.mirror.SetValue(dsettingsPMState, state.String())
	if err != nil {
		logger.Warning("failed to publish state:", err)
	}
}

func (pm *PowerManager) stopIdleTimer() {
	if pm.idleTimer != nil {
		pm.idleTimer.Stop()
		pm.idleTimer = nil
	}
}

// resetIdleTimer re-arms the idle timer, zero leaves it disarmed.
func (pm *PowerManager) resetIdleTimer(d time.Duration) {
	pm.stopIdleTimer()
	if d <= 0 {
		return
	}
	var timer Timer
	timer = pm.sched.AfterFunc(d, func() {
		if pm.idleTimer != timer {
			return
		}
		pm.idleTimer = nil
		pm.HandleEvent(EventTimeout)
	})
	pm.idleTimer = timer
}

func (pm *PowerManager) idleTimerPending() bool {
	return pm.idleTimer != nil
}

func (pm *PowerManager) handleLeaseExpired(l Lease) {
	if pm.idleTimerPending() {
		return
	}
	pm.HandleEvent(EventTimeout)
}

// keyBlocked reports whether a lease pinning the current state asked for
// hardware keys to be ignored.
func (pm *PowerManager) keyBlocked() bool {
	next := nextState(pm.cur, EventTimeout)
	return next.leasable() && pm.leases.HoldsKeyBlock(next)
}

type InputKind int

const (
	InputPointer InputKind = iota
	InputKey
)

// Input feeds a user input event.
func (pm *PowerManager) Input(kind InputKind) TransitionResult {
	if kind == InputKey && pm.keyBlocked() {
		logger.Debug("key input blocked in", pm.cur)
		return TransitionBlocked
	}
	return pm.HandleEvent(EventUserInput)
}

// Brightness returns the brightness restored when entering normal.
func (pm *PowerManager) Brightness() int {
	return pm.brightness
}

func (pm *PowerManager) SetBrightness(value int) error {
	maxValue := pm.backend.MaxBrightness()
	if value < 0 || value > maxValue {
		return fmt.Errorf("brightness %d out of range [0, %d]", value, maxValue)
	}
	pm.brightness = value
	if pm.cur == StateNormal {
		pm.applyBrightness(value)
	}
	return nil
}

func (pm *PowerManager) dimBrightness() int {
	v := pm.backend.MaxBrightness() * pm.dimPercent / 100
	if v < 1 {
		v = 1
	}
	if v > pm.brightness {
		v = pm.brightness
	}
	return v
}

// Dump describes the state and the lease table for debugging.
func (pm *PowerManager) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "state: %s (prev %s)\n", pm.cur, pm.prev)
	fmt.Fprintf(&sb, "timeouts: normal %v, dim %v, off %v\n",
		pm.descs[StateNormal].timeout, pm.descs[StateDim].timeout, pm.descs[StateOff].timeout)
	fmt.Fprintf(&sb, "idle timer pending: %v\n", pm.idleTimerPending())
	fmt.Fprintf(&sb, "guard: %s\n", pm.leases.Mask())
	for _, l := range pm.leases.Leases() {
		fmt.Fprintf(&sb, "lease pid %d state %s timeout %v holdkeyblock %v\n",
			l.PID, l.State, l.Timeout, l.HoldKeyBlock)
	}
	return sb.String()
}
