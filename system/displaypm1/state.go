// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"fmt"
)

type PowerState uint8

const (
	// StateStart is held until the configuration has been loaded.
	StateStart PowerState = iota
	StateNormal
	StateDim
	StateOff
	// StateSleep is the only state that suspends the kernel.
	StateSleep
	stateCount
)

var stateNames = [stateCount]string{"start", "normal", "dim", "off", "sleep"}

func (s PowerState) String() string {
	if s >= stateCount {
		return fmt.Sprintf("state(%d)", uint8(s))
	}
	return stateNames[s]
}

func (s PowerState) valid() bool {
	return s < stateCount
}

// leasable reports whether processes may forbid entering s.
func (s PowerState) leasable() bool {
	return s == StateDim || s == StateOff || s == StateSleep
}

func ParseState(name string) (PowerState, error) {
	for i, n := range stateNames {
		if n == name {
			return PowerState(i), nil
		}
	}
	return 0, fmt.Errorf("invalid power state %q", name)
}

type Event uint8

const (
	EventTimeout Event = iota
	EventUserInput
	EventDeviceWake
	eventCount
)

var eventNames = [eventCount]string{"timeout", "input", "device-wake"}

func (e Event) String() string {
	if e >= eventCount {
		return fmt.Sprintf("event(%d)", uint8(e))
	}
	return eventNames[e]
}

var transTable = [stateCount][eventCount]PowerState{
	//             timeout      input        device-wake
	StateStart:  {StateStart, StateStart, StateStart},
	StateNormal: {StateDim, StateNormal, StateNormal},
	StateDim:    {StateOff, StateNormal, StateDim},
	StateOff:    {StateSleep, StateNormal, StateOff},
	StateSleep:  {StateOff, StateNormal, StateOff},
}

func nextState(s PowerState, e Event) PowerState {
	return transTable[s][e]
}

// GuardMask has one bit per leasable state, set while at least one lease
// forbids entering that state.
type GuardMask uint8

func maskBit(s PowerState) GuardMask {
	if !s.leasable() {
		return 0
	}
	return 1 << (s - StateDim)
}

func (m GuardMask) Has(s PowerState) bool {
	bit := maskBit(s)
	return bit != 0 && m&bit != 0
}

func (m GuardMask) String() string {
	var out []byte
	for _, s := range []PowerState{StateDim, StateOff, StateSleep} {
		if m.Has(s) {
			if len(out) > 0 {
				out = append(out, '|')
			}
			out = append(out, s.String()...)
		}
	}
	if len(out) == 0 {
		return "none"
	}
	return string(out)
}
