// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"strconv"

	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/ctlsock"
	"github.com/spf13/cobra"
)

var (
	rawPID     int32
	rawTimeout uint32
)

func init() {
	rawCmd.Flags().Int32Var(&rawPID, "pid", 0, "requesting pid, 0 for this process")
	rawCmd.Flags().Uint32Var(&rawTimeout, "timeout", 0, "lease timeout in milliseconds")
	rootCmd.AddCommand(stateCmd, brightnessCmd, dumpCmd, rawCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current power state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var state string
		err := busCall("GetState", &state)
		if err != nil {
			return err
		}
		fmt.Println(state)
		return nil
	},
}

var brightnessCmd = &cobra.Command{
	Use:   "brightness [VALUE]",
	Short: "Print or set the normal brightness",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBrightness,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the state and every lease",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var dump string
		err := busCall("DumpLeases", &dump)
		if err != nil {
			return err
		}
		fmt.Print(dump)
		return nil
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw COMMAND",
	Short: "Send a raw command word over the control socket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		word, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return err
		}
		status, err := sendRecord(ctlsock.Record{
			PID:       rawPID,
			Command:   uint32(word),
			TimeoutMS: rawTimeout,
		})
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	},
}

func runBrightness(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		var value int32
		err := busCall("GetBrightness", &value)
		if err != nil {
			return err
		}
		if value < 0 {
			return checkStatus(value)
		}
		fmt.Println(value)
		return nil
	}
	value, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return err
	}
	var status int32
	err = busCall("SetBrightness", &status, int32(value))
	if err != nil {
		return err
	}
	return checkStatus(status)
}
