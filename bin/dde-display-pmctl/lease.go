// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	displaypm "github.com/linuxdeepin/dde-display-pm/system/displaypm1"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var (
	lockTimeout time.Duration
	lockOption  string
	lockHold    bool
	unlockOpt   string
)

func init() {
	lockCmd.Flags().DurationVar(&lockTimeout, "timeout", 0, "lease lifetime, 0 never expires")
	lockCmd.Flags().StringVar(&lockOption, "option", "", "holdkeyblock or gotostatenow")
	lockCmd.Flags().BoolVar(&lockHold, "hold", false, "keep the lease until interrupted, then release it")
	unlockCmd.Flags().StringVar(&unlockOpt, "option", "", "sleepmargin, resettimer or keeptimer")
	rootCmd.AddCommand(lockCmd, unlockCmd, changeCmd)
}

var lockCmd = &cobra.Command{
	Use:   "lock STATE",
	Short: "Forbid entering dim, off or sleep",
	Long: `Take a lease that forbids entering STATE. The lease belongs to this
process and is reclaimed once it exits, use --hold to keep it.`,
	Args: cobra.ExactArgs(1),
	RunE: runLock,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock STATE",
	Short: "Release a lease of this process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return unlock(args[0], unlockOpt)
	},
}

var changeCmd = &cobra.Command{
	Use:   "change STATE",
	Short: "Enter a state regardless of leases",
	Args:  cobra.ExactArgs(1),
	RunE:  runChange,
}

func toMS(d time.Duration) uint32 {
	return uint32(d / time.Millisecond)
}

func runLock(cmd *cobra.Command, args []string) error {
	state, err := displaypm.ParseState(args[0])
	if err != nil {
		return err
	}

	var status int32
	if optUseSocket {
		c := displaypm.Command{Lock: []displaypm.PowerState{state}}
		switch lockOption {
		case "":
		case "holdkeyblock":
			c.HoldKeyBlock = true
		default:
			return fmt.Errorf("option %q is not supported over the socket", lockOption)
		}
		status, err = sendCommand(c, toMS(lockTimeout))
	} else {
		err = busCall("Lock", &status, state.String(), lockOption, toMS(lockTimeout))
	}
	if err != nil {
		return err
	}
	if err := checkStatus(status); err != nil {
		return err
	}
	if !lockHold {
		return nil
	}

	fmt.Printf("holding lease on %s, interrupt to release\n", state)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	<-sigCh
	return unlock(state.String(), "")
}

func unlock(name, option string) error {
	state, err := displaypm.ParseState(name)
	if err != nil {
		return err
	}
	var status int32
	if optUseSocket {
		opt, err := displaypm.ParseUnlockOption(option)
		if err != nil {
			return err
		}
		status, err = sendCommand(displaypm.Command{
			Unlock:       []displaypm.PowerState{state},
			UnlockOption: opt,
		}, 0)
		if err != nil {
			return err
		}
	} else {
		err = busCall("Unlock", &status, state.String(), option)
		if err != nil {
			return err
		}
	}
	return checkStatus(status)
}

func runChange(cmd *cobra.Command, args []string) error {
	state, err := displaypm.ParseState(args[0])
	if err != nil {
		return err
	}
	var status int32
	if optUseSocket {
		status, err = sendCommand(displaypm.Command{Change: state}, 0)
	} else {
		err = busCall("Change", &status, state.String())
	}
	if err != nil {
		return err
	}
	return checkStatus(status)
}
