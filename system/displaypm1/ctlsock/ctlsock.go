// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ctlsock carries fixed size lock requests over a unix stream
// socket. Every request record is answered with an int32 status.
package ctlsock

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

var logger = log.NewLogger("daemon/displaypm/ctlsock")

const (
	RecordSize = 12
	statusSize = 4
)

// Record is the wire request, all fields little endian.
type Record struct {
	// PID is the requesting process, zero means the socket peer.
	PID       int32
	Command   uint32
	TimeoutMS uint32
}

func (r Record) Marshal() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(r.PID))
	binary.LittleEndian.PutUint32(buf[4:], r.Command)
	binary.LittleEndian.PutUint32(buf[8:], r.TimeoutMS)
	return buf
}

func Unmarshal(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, xerrors.Errorf("record size %d, want %d", len(buf), RecordSize)
	}
	return Record{
		PID:       int32(binary.LittleEndian.Uint32(buf[0:])),
		Command:   binary.LittleEndian.Uint32(buf[4:]),
		TimeoutMS: binary.LittleEndian.Uint32(buf[8:]),
	}, nil
}

// Handler serves one record and returns its status.
type Handler func(rec Record) int32

type Server struct {
	path     string
	handler  Handler
	listener *net.UnixListener

	mu     sync.Mutex
	conns  map[*net.UnixConn]struct{}
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Listen creates the socket at path, replacing a stale one.
func Listen(path string, handler Handler) (*Server, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, err
	}
	err = removeStale(path)
	if err != nil {
		return nil, err
	}
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, xerrors.Errorf("listen %s: %w", path, err)
	}
	// any process may take a lease
	err = os.Chmod(path, 0666)
	if err != nil {
		l.Close()
		return nil, err
	}
	return &Server{
		path:     path,
		handler:  handler,
		listener: l,
		conns:    make(map[*net.UnixConn]struct{}),
		done:     make(chan struct{}),
	}, nil
}

func removeStale(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return xerrors.Errorf("%s is not a socket", path)
	}
	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err == nil {
		conn.Close()
		return xerrors.Errorf("socket %s already in use", path)
	}
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Server) Path() string {
	return s.path
}

// Serve accepts connections until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
			s.untrack(conn)
		}()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn *net.UnixConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *net.UnixConn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) serveConn(conn *net.UnixConn) {
	peerPID, err := PeerPID(conn)
	if err != nil {
		logger.Warning(err)
	}
	buf := make([]byte, RecordSize)
	status := make([]byte, statusSize)
	for {
		_, err := io.ReadFull(conn, buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				logger.Debug("read record:", err)
			}
			return
		}
		rec, _ := Unmarshal(buf)
		if rec.PID == 0 {
			rec.PID = peerPID
		}
		binary.LittleEndian.PutUint32(status, uint32(s.handler(rec)))
		_, err = conn.Write(status)
		if err != nil {
			logger.Debug("write status:", err)
			return
		}
	}
}

// PeerPID returns the pid of the process on the other end of conn.
func PeerPID(conn *net.UnixConn) (int32, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return 0, err
	}
	if credErr != nil {
		return 0, xerrors.Errorf("get peer credentials: %w", credErr)
	}
	return cred.Pid, nil
}

// Close stops accepting, drops open connections and removes the socket.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	err := s.listener.Close()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()

	rmErr := os.Remove(s.path)
	if err == nil && rmErr != nil && !os.IsNotExist(rmErr) {
		err = rmErr
	}
	return err
}

// Send delivers rec to the server at path and returns its status.
func Send(ctx context.Context, path string, rec Record) (int32, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		err = conn.SetDeadline(deadline)
		if err != nil {
			return 0, err
		}
	}
	_, err = conn.Write(rec.Marshal())
	if err != nil {
		return 0, err
	}
	buf := make([]byte, statusSize)
	_, err = io.ReadFull(conn, buf)
	if err != nil {
		return 0, xerrors.Errorf("read status: %w", err)
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}
