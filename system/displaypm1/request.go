// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Status codes returned to callers.
const (
	StatusOK          int32 = 0
	StatusNoProcess         = -int32(unix.ESRCH)
	StatusInvalid           = -int32(unix.EINVAL)
	StatusUnavailable       = -int32(unix.ESHUTDOWN)
)

// ControlMessage is the fixed request record of the control channel.
type ControlMessage struct {
	PID       int32
	Command   uint32
	TimeoutMS uint32
}

// Command word layout:
//
//	bits 0..2   lock dim, off, sleep
//	bits 4..6   unlock dim, off, sleep
//	bits 7..15  force change, state index + 1, 0 for none
//	bit  16     hold key block for the locks
//	bits 17..18 unlock option
const (
	cmdStateMask     = 0x7
	cmdUnlockShift   = 4
	cmdChangeShift   = 7
	cmdChangeMask    = 0x1ff
	cmdHoldKeyBlock  = 1 << 16
	cmdUnlockOptShft = 17
	cmdUnlockOptMask = 0x3

	cmdKnownBits = cmdStateMask |
		cmdStateMask<<cmdUnlockShift |
		cmdChangeMask<<cmdChangeShift |
		cmdHoldKeyBlock |
		cmdUnlockOptMask<<cmdUnlockOptShft
)

var cmdStates = [...]PowerState{StateDim, StateOff, StateSleep}

type UnlockOption uint8

const (
	// UnlockSleepMargin gives a short grace period before the released
	// state becomes reachable.
	UnlockSleepMargin UnlockOption = iota
	// UnlockResetTimer restarts the idle timer at full length.
	UnlockResetTimer
	// UnlockKeepTimer leaves the idle timer alone.
	UnlockKeepTimer
	unlockOptionCount
)

var unlockOptionNames = [unlockOptionCount]string{"sleepmargin", "resettimer", "keeptimer"}

func (o UnlockOption) String() string {
	if o >= unlockOptionCount {
		return fmt.Sprintf("option(%d)", uint8(o))
	}
	return unlockOptionNames[o]
}

func ParseUnlockOption(name string) (UnlockOption, error) {
	if name == "" {
		return UnlockSleepMargin, nil
	}
	for i, n := range unlockOptionNames {
		if n == name {
			return UnlockOption(i), nil
		}
	}
	return 0, fmt.Errorf("invalid unlock option %q", name)
}

// Request is one of LockRequest, UnlockRequest or ChangeRequest.
type Request interface {
	request()
}

type LockRequest struct {
	State        PowerState
	Timeout      time.Duration
	HoldKeyBlock bool
}

type UnlockRequest struct {
	State  PowerState
	Option UnlockOption
}

type ChangeRequest struct {
	State PowerState
}

func (LockRequest) request()   {}
func (UnlockRequest) request() {}
func (ChangeRequest) request() {}

// Command is the decoded form of a command word.
type Command struct {
	Lock         []PowerState
	Unlock       []PowerState
	Change       PowerState // StateStart for none
	HoldKeyBlock bool
	UnlockOption UnlockOption
}

func stateBit(s PowerState) (uint32, error) {
	for i, cs := range cmdStates {
		if cs == s {
			return 1 << uint(i), nil
		}
	}
	return 0, fmt.Errorf("state %s can not be locked", s)
}

func (c Command) Encode() (uint32, error) {
	var word uint32
	for _, s := range c.Lock {
		bit, err := stateBit(s)
		if err != nil {
			return 0, err
		}
		word |= bit
	}
	for _, s := range c.Unlock {
		bit, err := stateBit(s)
		if err != nil {
			return 0, err
		}
		word |= bit << cmdUnlockShift
	}
	if c.Change != StateStart {
		if !c.Change.valid() {
			return 0, fmt.Errorf("can not change to %s", c.Change)
		}
		word |= (uint32(c.Change) + 1) << cmdChangeShift
	}
	if c.HoldKeyBlock {
		word |= cmdHoldKeyBlock
	}
	if c.UnlockOption >= unlockOptionCount {
		return 0, fmt.Errorf("invalid unlock option %d", c.UnlockOption)
	}
	word |= uint32(c.UnlockOption) << cmdUnlockOptShft
	if _, err := DecodeCommand(word); err != nil {
		return 0, err
	}
	return word, nil
}

var errEmptyCommand = errors.New("empty command")

func DecodeCommand(word uint32) (Command, error) {
	var c Command
	if word == 0 {
		return c, errEmptyCommand
	}
	if unknown := word &^ cmdKnownBits; unknown != 0 {
		return c, fmt.Errorf("unknown command bits %#x", unknown)
	}
	for i, s := range cmdStates {
		if word&(1<<uint(i)) != 0 {
			c.Lock = append(c.Lock, s)
		}
		if word&(1<<uint(i+cmdUnlockShift)) != 0 {
			c.Unlock = append(c.Unlock, s)
		}
	}
	if selector := (word >> cmdChangeShift) & cmdChangeMask; selector != 0 {
		s := PowerState(selector - 1)
		if selector-1 >= uint32(stateCount) || s == StateStart {
			return c, fmt.Errorf("invalid change selector %d", selector)
		}
		c.Change = s
	}
	c.HoldKeyBlock = word&cmdHoldKeyBlock != 0
	if c.HoldKeyBlock && len(c.Lock) == 0 {
		return c, errors.New("hold key block without lock")
	}
	c.UnlockOption = UnlockOption((word >> cmdUnlockOptShft) & cmdUnlockOptMask)
	if c.UnlockOption >= unlockOptionCount {
		return c, fmt.Errorf("invalid unlock option %d", c.UnlockOption)
	}
	if c.UnlockOption != UnlockSleepMargin && len(c.Unlock) == 0 {
		return c, errors.New("unlock option without unlock")
	}
	return c, nil
}

// DecodeMessage turns a control message into requests, unlocks first,
// then locks, then the state change.
func DecodeMessage(msg ControlMessage) ([]Request, error) {
	c, err := DecodeCommand(msg.Command)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(msg.TimeoutMS) * time.Millisecond
	var reqs []Request
	for _, s := range c.Unlock {
		reqs = append(reqs, UnlockRequest{State: s, Option: c.UnlockOption})
	}
	for _, s := range c.Lock {
		reqs = append(reqs, LockRequest{State: s, Timeout: timeout, HoldKeyBlock: c.HoldKeyBlock})
	}
	if c.Change != StateStart {
		reqs = append(reqs, ChangeRequest{State: c.Change})
	}
	return reqs, nil
}

func validateRequests(reqs []Request) error {
	if len(reqs) == 0 {
		return errEmptyCommand
	}
	for _, req := range reqs {
		switch r := req.(type) {
		case LockRequest:
			if !r.State.leasable() {
				return fmt.Errorf("state %s can not be locked", r.State)
			}
			if r.Timeout < 0 {
				return fmt.Errorf("invalid timeout %v", r.Timeout)
			}
		case UnlockRequest:
			if !r.State.leasable() {
				return fmt.Errorf("state %s can not be unlocked", r.State)
			}
			if r.Option >= unlockOptionCount {
				return fmt.Errorf("invalid unlock option %d", r.Option)
			}
		case ChangeRequest:
			if !r.State.valid() || r.State == StateStart {
				return fmt.Errorf("can not change to %s", r.State)
			}
		default:
			return fmt.Errorf("unknown request %T", req)
		}
	}
	return nil
}

// Apply performs every request of pid and then consults the state
// machine once, so no intermediate guard state is ever acted on.
func (pm *PowerManager) Apply(pid int, reqs []Request) int32 {
	if err := validateRequests(reqs); err != nil {
		logger.Warningf("reject request of pid %d: %v", pid, err)
		return StatusInvalid
	}

	var released []PowerState
	unlockOpt := UnlockKeepTimer
	var change *ChangeRequest
	for _, req := range reqs {
		switch r := req.(type) {
		case UnlockRequest:
			pm.leases.Release(pid, r.State)
			released = append(released, r.State)
			unlockOpt = r.Option
		case LockRequest:
			if err := pm.leases.Acquire(pid, r.State, r.Timeout, r.HoldKeyBlock); err != nil {
				logger.Warning(err)
				return StatusInvalid
			}
		case ChangeRequest:
			c := r
			change = &c
		}
	}

	if change != nil {
		if err := pm.ForceChange(change.State); err != nil {
			logger.Warning(err)
			return StatusInvalid
		}
	} else if len(released) > 0 {
		pm.afterUnlock(released, unlockOpt)
	}
	return StatusOK
}

func (pm *PowerManager) afterUnlock(released []PowerState, opt UnlockOption) {
	if pm.dimSkipped() {
		// nothing to wait for, off is reached as soon as it is free
		pm.HandleEvent(EventTimeout)
		return
	}
	switch opt {
	case UnlockResetTimer:
		pm.resetIdleTimer(pm.descs[pm.cur].timeout)
	case UnlockKeepTimer:
		if !pm.idleTimerPending() {
			pm.HandleEvent(EventTimeout)
		}
	case UnlockSleepMargin:
		next := nextState(pm.cur, EventTimeout)
		if pm.idleTimerPending() || pm.descs[pm.cur].timeout == 0 {
			return
		}
		for _, s := range released {
			if s == next {
				pm.resetIdleTimer(pm.sleepMargin)
				return
			}
		}
	}
}

// Dispatcher feeds control channel messages into the power manager.
type Dispatcher struct {
	pm      *PowerManager
	isAlive func(pid int) bool
}

func NewDispatcher(pm *PowerManager) *Dispatcher {
	return &Dispatcher{pm: pm, isAlive: isProcessAlive}
}

// Dispatch must run on the loop goroutine.
func (d *Dispatcher) Dispatch(msg ControlMessage) int32 {
	reqs, err := DecodeMessage(msg)
	if err != nil {
		logger.Warningf("malformed message from pid %d: %v", msg.PID, err)
		return StatusInvalid
	}
	if !d.isAlive(int(msg.PID)) {
		logger.Warningf("message from dead pid %d", msg.PID)
		return StatusNoProcess
	}
	return d.pm.Apply(int(msg.PID), reqs)
}
