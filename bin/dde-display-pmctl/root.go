// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/godbus/dbus/v5"
	displaypm "github.com/linuxdeepin/dde-display-pm/system/displaypm1"
	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/ctlsock"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

const (
	dbusServiceName = "org.deepin.dde.DisplayPM1"
	dbusPath        = "/org/deepin/dde/DisplayPM1"
	dbusInterface   = dbusServiceName
)

var (
	optSocket      string
	optUseSocket   bool
	optCallTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dde-display-pmctl",
	Short: "Control the display power manager",
	Long: `dde-display-pmctl takes and releases display power leases and
forces display power states.

Requests go over the system bus by default, --use-socket sends them as
command words over the control socket instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&optSocket, "socket", displaypm.DefaultSocketPath, "control socket path")
	flags.BoolVar(&optUseSocket, "use-socket", false, "send requests over the control socket")
	flags.DurationVar(&optCallTimeout, "call-timeout", 5*time.Second, "request timeout")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func busObject() (dbus.BusObject, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return conn.Object(dbusServiceName, dbusPath), nil
}

func busCall(method string, ret interface{}, args ...interface{}) error {
	obj, err := busObject()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), optCallTimeout)
	defer cancel()
	call := obj.CallWithContext(ctx, dbusInterface+"."+method, 0, args...)
	if call.Err != nil {
		return call.Err
	}
	if ret == nil {
		return nil
	}
	return call.Store(ret)
}

// sendCommand encodes c and sends it with our own pid.
func sendCommand(c displaypm.Command, timeoutMS uint32) (int32, error) {
	word, err := c.Encode()
	if err != nil {
		return 0, err
	}
	return sendRecord(ctlsock.Record{
		PID:       int32(os.Getpid()),
		Command:   word,
		TimeoutMS: timeoutMS,
	})
}

func sendRecord(rec ctlsock.Record) (int32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), optCallTimeout)
	defer cancel()
	return ctlsock.Send(ctx, optSocket, rec)
}

func checkStatus(status int32) error {
	switch status {
	case displaypm.StatusOK:
		return nil
	case displaypm.StatusInvalid:
		return fmt.Errorf("request rejected: %v", unix.EINVAL)
	case displaypm.StatusNoProcess:
		return fmt.Errorf("request rejected: %v", unix.ESRCH)
	}
	return fmt.Errorf("request failed with status %d", status)
}
