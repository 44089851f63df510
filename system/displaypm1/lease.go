// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

// Lease forbids the power manager to enter State on behalf of PID.
type Lease struct {
	PID          int
	State        PowerState
	HoldKeyBlock bool
	// Timeout is zero for leases that never expire.
	Timeout time.Duration

	expiry Timer
}

type leaseKey struct {
	pid   int
	state PowerState
}

// LeaseTable owns every lease. It is confined to the loop goroutine.
type LeaseTable struct {
	leases   map[leaseKey]*Lease
	mask     GuardMask
	sched    Scheduler
	isAlive  func(pid int) bool
	onExpire func(l Lease)
}

func newLeaseTable(sched Scheduler, isAlive func(pid int) bool) *LeaseTable {
	if isAlive == nil {
		isAlive = isProcessAlive
	}
	return &LeaseTable{
		leases:  make(map[leaseKey]*Lease),
		sched:   sched,
		isAlive: isAlive,
	}
}

// isProcessAlive probes pid with signal 0.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// Acquire adds a lease or refreshes the existing one of the same process
// and state, replacing its expiry timer.
func (t *LeaseTable) Acquire(pid int, state PowerState, timeout time.Duration, holdKeyBlock bool) error {
	if !state.leasable() {
		return fmt.Errorf("state %s can not be locked", state)
	}
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	key := leaseKey{pid: pid, state: state}
	if old, ok := t.leases[key]; ok {
		old.stopExpiry()
		logger.Debugf("refresh lease pid %d state %s timeout %v", pid, state, timeout)
	} else {
		logger.Debugf("add lease pid %d state %s timeout %v", pid, state, timeout)
	}

	l := &Lease{
		PID:          pid,
		State:        state,
		HoldKeyBlock: holdKeyBlock,
		Timeout:      timeout,
	}
	if timeout > 0 {
		l.expiry = t.sched.AfterFunc(timeout, func() {
			t.expire(key, l)
		})
	}
	t.leases[key] = l
	t.recompute()
	return nil
}

func (t *LeaseTable) expire(key leaseKey, l *Lease) {
	if t.leases[key] != l {
		return
	}
	l.expiry = nil
	delete(t.leases, key)
	t.recompute()
	logger.Debugf("lease pid %d state %s expired", l.PID, l.State)
	if t.onExpire != nil {
		t.onExpire(*l)
	}
}

// Release removes the lease, it reports whether one existed.
func (t *LeaseTable) Release(pid int, state PowerState) bool {
	key := leaseKey{pid: pid, state: state}
	l, ok := t.leases[key]
	if !ok {
		return false
	}
	l.stopExpiry()
	delete(t.leases, key)
	t.recompute()
	logger.Debugf("release lease pid %d state %s", pid, state)
	return true
}

// SweepDead drops the leases on state whose owner has exited.
func (t *LeaseTable) SweepDead(state PowerState) bool {
	changed := false
	for key, l := range t.leases {
		if key.state != state || t.isAlive(key.pid) {
			continue
		}
		logger.Infof("reclaim lease of dead process %d on %s", key.pid, state)
		l.stopExpiry()
		delete(t.leases, key)
		changed = true
	}
	if changed {
		t.recompute()
	}
	return changed
}

func (t *LeaseTable) HoldsKeyBlock(state PowerState) bool {
	for key, l := range t.leases {
		if key.state == state && l.HoldKeyBlock {
			return true
		}
	}
	return false
}

func (t *LeaseTable) Mask() GuardMask {
	return t.mask
}

func (t *LeaseTable) Count(state PowerState) int {
	n := 0
	for key := range t.leases {
		if key.state == state {
			n++
		}
	}
	return n
}

func (t *LeaseTable) Len() int {
	return len(t.leases)
}

// Leases returns a copy of the table ordered by state then pid.
func (t *LeaseTable) Leases() []Lease {
	result := make([]Lease, 0, len(t.leases))
	for _, l := range t.leases {
		c := *l
		c.expiry = nil
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].State != result[j].State {
			return result[i].State < result[j].State
		}
		return result[i].PID < result[j].PID
	})
	return result
}

// Clear drops every lease and cancels their timers.
func (t *LeaseTable) Clear() {
	for key, l := range t.leases {
		l.stopExpiry()
		delete(t.leases, key)
	}
	t.recompute()
}

func (t *LeaseTable) recompute() {
	var mask GuardMask
	for key := range t.leases {
		mask |= maskBit(key.state)
	}
	if mask != t.mask {
		logger.Debugf("guard mask %s -> %s", t.mask, mask)
	}
	t.mask = mask
}

func (l *Lease) stopExpiry() {
	if l.expiry != nil {
		l.expiry.Stop()
		l.expiry = nil
	}
}
