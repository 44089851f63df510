// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package evdev

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(events ...Event) []byte {
	buf := make([]byte, len(events)*eventSize)
	for i, ev := range events {
		rec := buf[i*eventSize:]
		off := eventSize - 8
		// timestamp left zero
		binary.LittleEndian.PutUint16(rec[off:], ev.Type)
		binary.LittleEndian.PutUint16(rec[off+2:], ev.Code)
		binary.LittleEndian.PutUint32(rec[off+4:], uint32(ev.Value))
	}
	return buf
}

func TestParseEvents(t *testing.T) {
	in := []Event{
		{Type: evKey, Code: 30, Value: 1},
		{Type: evRel, Code: 0, Value: -3},
		{Type: evSyn},
	}
	buf := encode(in...)
	assert.Equal(t, in, ParseEvents(buf))

	// trailing partial record
	assert.Equal(t, in[:2], ParseEvents(buf[:2*eventSize+5]))
	assert.Empty(t, ParseEvents(nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		ev   Event
		kind Kind
		ok   bool
	}{
		{Event{Type: evKey, Code: 30}, KindKey, true},
		{Event{Type: evKey, Code: 116}, KindKey, true},
		{Event{Type: evKey, Code: 0x110}, KindPointer, true},
		{Event{Type: evKey, Code: 0x14a}, KindPointer, true},
		{Event{Type: evKey, Code: keyOK}, KindKey, true},
		{Event{Type: evKey, Code: btnTrigHp}, KindPointer, true},
		{Event{Type: evRel, Code: 1}, KindPointer, true},
		{Event{Type: evAbs, Code: 0}, KindPointer, true},
		{Event{Type: evSyn}, 0, false},
		{Event{Type: evMsc, Code: 4}, 0, false},
		{Event{Type: 0x11}, 0, false},
	}
	for _, tt := range tests {
		kind, ok := Classify(tt.ev)
		assert.Equal(t, tt.ok, ok, "%+v", tt.ev)
		if tt.ok {
			assert.Equal(t, tt.kind, kind, "%+v", tt.ev)
		}
	}
}

// chunkReader returns at most n bytes per read.
type chunkReader struct {
	r *bytes.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

func TestReadEvents(t *testing.T) {
	data := encode(
		Event{Type: evKey, Code: 30, Value: 1},
		Event{Type: evSyn},
		Event{Type: evRel, Code: 0, Value: 2},
		Event{Type: evMsc, Code: 4},
		Event{Type: evKey, Code: 0x110, Value: 1},
	)
	var kinds []Kind
	r := &chunkReader{r: bytes.NewReader(data), n: 7}
	err := ReadEvents(r, func(kind Kind) {
		kinds = append(kinds, kind)
	})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindKey, KindPointer, KindPointer}, kinds)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("device gone")
}

func TestReadEvents_Error(t *testing.T) {
	err := ReadEvents(errReader{}, func(Kind) {
		t.Fatal("unexpected event")
	})
	assert.EqualError(t, err, "device gone")
}

func TestIsEventDevice(t *testing.T) {
	assert.True(t, isEventDevice("/dev/input/event3"))
	assert.False(t, isEventDevice("/dev/input/mice"))
	assert.False(t, isEventDevice("/dev/input/by-id"))
}
