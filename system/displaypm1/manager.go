// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"github.com/linuxdeepin/go-lib/dbusutil"
)

//go:generate dbusutil-gen em -type Manager
type Manager struct {
	service    *dbusutil.Service
	loop       *Loop
	pm         *PowerManager
	dispatcher *Dispatcher

	getPID  func(sender string) (uint32, error)
	isAlive func(pid int) bool

	// nolint
	signals *struct {
		StateChanged struct {
			prev string
			cur  string
		}
	}
}

func newManager(service *dbusutil.Service, loop *Loop, pm *PowerManager) *Manager {
	m := &Manager{
		service:    service,
		loop:       loop,
		pm:         pm,
		dispatcher: NewDispatcher(pm),
		isAlive:    isProcessAlive,
	}
	if service != nil {
		m.getPID = service.GetConnPID
	}
	pm.ConnectStateChanged(m.emitStateChanged)
	return m
}

func (m *Manager) emitStateChanged(prev, cur PowerState) {
	if m.service == nil {
		return
	}
	err := m.service.Emit(m, "StateChanged", prev.String(), cur.String())
	if err != nil {
		logger.Warning(err)
	}
}

// call runs fn on the loop and returns its status.
func (m *Manager) call(fn func() int32) int32 {
	status := StatusUnavailable
	m.loop.Call(func() {
		status = fn()
	})
	return status
}

// handleRecord serves one control socket record.
func (m *Manager) handleRecord(msg ControlMessage) int32 {
	return m.call(func() int32 {
		return m.dispatcher.Dispatch(msg)
	})
}

// pinnedState is the deepest state a lease on s still allows.
func pinnedState(s PowerState) PowerState {
	return s - 1
}

// lockRequests builds the requests of a bus Lock call, gotostatenow
// also moves back to the pinned state when the display went past it.
func (m *Manager) lockRequests(state PowerState, option string, timeoutMS uint32) ([]Request, bool) {
	lock := LockRequest{
		State:   state,
		Timeout: msDuration(timeoutMS),
	}
	gotoNow := false
	switch option {
	case "":
	case lockOptionHoldKeyBlock:
		lock.HoldKeyBlock = true
	case lockOptionGotoStateNow:
		gotoNow = true
	default:
		return nil, false
	}
	reqs := []Request{lock}
	if gotoNow && state.leasable() && m.pm.State() > pinnedState(state) {
		reqs = append(reqs, ChangeRequest{State: pinnedState(state)})
	}
	return reqs, true
}
