// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
)

const (
	lockOptionHoldKeyBlock = "holdkeyblock"
	lockOptionGotoStateNow = "gotostatenow"
)

func msDuration(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (*Manager) GetInterfaceName() string {
	return dbusInterface
}

// senderPID resolves the caller, status is non-zero when it can not be
// served.
func (m *Manager) senderPID(sender dbus.Sender) (int, int32, error) {
	if m.getPID == nil {
		return 0, StatusUnavailable, nil
	}
	pid, err := m.getPID(string(sender))
	if err != nil {
		return 0, 0, err
	}
	if !m.isAlive(int(pid)) {
		logger.Warningf("request from dead pid %d", pid)
		return int(pid), StatusNoProcess, nil
	}
	return int(pid), StatusOK, nil
}

func (m *Manager) Lock(sender dbus.Sender, state string, option string, timeout uint32) (status int32, busErr *dbus.Error) {
	s, err := ParseState(state)
	if err != nil {
		logger.Warning(err)
		return StatusInvalid, nil
	}
	pid, status, err := m.senderPID(sender)
	if err != nil {
		return 0, dbusutil.ToError(err)
	}
	if status != StatusOK {
		return status, nil
	}
	logger.Debugf("Lock pid %d state %s option %q timeout %dms", pid, s, option, timeout)
	return m.call(func() int32 {
		reqs, ok := m.lockRequests(s, option, timeout)
		if !ok {
			logger.Warningf("invalid lock option %q", option)
			return StatusInvalid
		}
		return m.pm.Apply(pid, reqs)
	}), nil
}

func (m *Manager) Unlock(sender dbus.Sender, state string, option string) (status int32, busErr *dbus.Error) {
	s, err := ParseState(state)
	if err != nil {
		logger.Warning(err)
		return StatusInvalid, nil
	}
	opt, err := ParseUnlockOption(option)
	if err != nil {
		logger.Warning(err)
		return StatusInvalid, nil
	}
	pid, status, err := m.senderPID(sender)
	if err != nil {
		return 0, dbusutil.ToError(err)
	}
	if status != StatusOK {
		return status, nil
	}
	logger.Debugf("Unlock pid %d state %s option %s", pid, s, opt)
	return m.call(func() int32 {
		return m.pm.Apply(pid, []Request{UnlockRequest{State: s, Option: opt}})
	}), nil
}

func (m *Manager) Change(sender dbus.Sender, state string) (status int32, busErr *dbus.Error) {
	s, err := ParseState(state)
	if err != nil {
		logger.Warning(err)
		return StatusInvalid, nil
	}
	pid, status, err := m.senderPID(sender)
	if err != nil {
		return 0, dbusutil.ToError(err)
	}
	if status != StatusOK {
		return status, nil
	}
	logger.Infof("Change to %s by pid %d", s, pid)
	return m.call(func() int32 {
		return m.pm.Apply(pid, []Request{ChangeRequest{State: s}})
	}), nil
}

// GetBrightness returns the normal brightness, or a negative status when
// the caller can not be served.
func (m *Manager) GetBrightness(sender dbus.Sender) (value int32, busErr *dbus.Error) {
	_, status, err := m.senderPID(sender)
	if err != nil {
		return 0, dbusutil.ToError(err)
	}
	if status != StatusOK {
		return status, nil
	}
	return m.call(func() int32 {
		return int32(m.pm.Brightness())
	}), nil
}

func (m *Manager) SetBrightness(sender dbus.Sender, value int32) (status int32, busErr *dbus.Error) {
	_, status, err := m.senderPID(sender)
	if err != nil {
		return 0, dbusutil.ToError(err)
	}
	if status != StatusOK {
		return status, nil
	}
	return m.call(func() int32 {
		err := m.pm.SetBrightness(int(value))
		if err != nil {
			logger.Warning(err)
			return StatusInvalid
		}
		return StatusOK
	}), nil
}

func (m *Manager) GetState() (state string, busErr *dbus.Error) {
	state = StateStart.String()
	m.loop.Call(func() {
		state = m.pm.State().String()
	})
	return state, nil
}

func (m *Manager) DumpLeases() (dump string, busErr *dbus.Error) {
	m.loop.Call(func() {
		dump = m.pm.Dump()
	})
	return dump, nil
}
