// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package evdev reports user activity read from the kernel input event
// devices.
package evdev

import (
	"encoding/binary"
	"strconv"

	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("daemon/displaypm/evdev")

// Kind is the class of an input event that counts as user activity.
type Kind int

const (
	KindPointer Kind = iota
	KindKey
)

func (k Kind) String() string {
	if k == KindKey {
		return "key"
	}
	return "pointer"
}

// Event is one struct input_event without its timestamp.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// event types and code ranges from linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03
	evMsc = 0x04

	btnMisc   = 0x100
	keyOK     = 0x160
	btnTrigHp = 0x2c0
)

// eventSize is sizeof(struct input_event): a struct timeval of two longs,
// then type, code and value.
var eventSize = 2*strconv.IntSize/8 + 8

// ParseEvents decodes whole input_event records from buf, a trailing
// partial record is ignored.
func ParseEvents(buf []byte) []Event {
	n := len(buf) / eventSize
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		rec := buf[i*eventSize : (i+1)*eventSize]
		off := eventSize - 8
		events = append(events, Event{
			Type:  binary.LittleEndian.Uint16(rec[off:]),
			Code:  binary.LittleEndian.Uint16(rec[off+2:]),
			Value: int32(binary.LittleEndian.Uint32(rec[off+4:])),
		})
	}
	return events
}

// Classify tells whether ev is user activity and of which kind.
func Classify(ev Event) (Kind, bool) {
	switch ev.Type {
	case evKey:
		if ev.Code >= btnMisc && ev.Code < keyOK {
			return KindPointer, true
		}
		if ev.Code >= btnTrigHp {
			// trigger happy buttons are joystick and remote buttons
			return KindPointer, true
		}
		return KindKey, true
	case evRel, evAbs:
		return KindPointer, true
	}
	return 0, false
}
