// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ctlsock

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Marshal(t *testing.T) {
	rec := Record{PID: 1234, Command: 0x10002, TimeoutMS: 500}
	buf := rec.Marshal()
	assert.Equal(t, []byte{
		0xd2, 0x04, 0, 0,
		0x02, 0, 0x01, 0,
		0xf4, 0x01, 0, 0,
	}, buf)

	got, err := Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = Unmarshal(buf[:8])
	assert.Error(t, err)
}

func startServer(t *testing.T, handler Handler) (*Server, context.CancelFunc) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	s, err := Listen(path, handler)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- s.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-served)
	})
	return s, cancel
}

func TestServer_Send(t *testing.T) {
	var got []Record
	s, _ := startServer(t, func(rec Record) int32 {
		got = append(got, rec)
		if rec.Command == 0 {
			return -22
		}
		return 0
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := Send(ctx, s.Path(), Record{PID: 42, Command: 1, TimeoutMS: 100})
	require.NoError(t, err)
	assert.Equal(t, int32(0), status)

	status, err = Send(ctx, s.Path(), Record{PID: 42})
	require.NoError(t, err)
	assert.Equal(t, int32(-22), status)

	// pid 0 is replaced by the peer pid
	status, err = Send(ctx, s.Path(), Record{Command: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(0), status)

	require.Len(t, got, 3)
	assert.Equal(t, Record{PID: 42, Command: 1, TimeoutMS: 100}, got[0])
	assert.Equal(t, int32(os.Getpid()), got[2].PID)
}

func TestServer_MultipleRecords(t *testing.T) {
	s, _ := startServer(t, func(rec Record) int32 {
		return int32(rec.Command)
	})

	conn, err := net.Dial("unix", s.Path())
	require.NoError(t, err)
	defer conn.Close()

	for i := uint32(1); i <= 3; i++ {
		_, err = conn.Write(Record{PID: 7, Command: i}.Marshal())
		require.NoError(t, err)
		buf := make([]byte, 4)
		_, err = conn.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i), 0, 0, 0}, buf)
	}
}

func TestListen_AlreadyInUse(t *testing.T) {
	s, _ := startServer(t, func(Record) int32 { return 0 })

	_, err := Listen(s.Path(), func(Record) int32 { return 0 })
	assert.Error(t, err)
}

func TestListen_StaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	l.SetUnlinkOnClose(false)
	require.NoError(t, l.Close())

	s, err := Listen(path, func(Record) int32 { return 0 })
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestListen_NotSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := Listen(path, func(Record) int32 { return 0 })
	assert.Error(t, err)
}
