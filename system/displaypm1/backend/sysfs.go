// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	displayBl "github.com/linuxdeepin/go-lib/backlight/display"
	"golang.org/x/xerrors"
)

const DefaultSysfsRoot = "/sys"

type Options struct {
	// SysfsRoot is "/sys" in production.
	SysfsRoot string
	// Controller selects a backlight by name, empty picks the first one.
	Controller string
	// PreSuspendNode receives "1" before the panel goes off for the first
	// time on the way to sleep. Optional.
	PreSuspendNode string
	// InputWakeupIRQs are the IRQ numbers that count as a user wakeup.
	InputWakeupIRQs []int
}

type controller struct {
	name          string
	maxBrightness int
}

type Sysfs struct {
	root           string
	controller     controller
	preSuspendNode string
	inputIRQs      map[int]struct{}
}

var listControllers = func(root string) ([]controller, error) {
	if root != DefaultSysfsRoot {
		return scanControllers(root)
	}
	list, err := displayBl.List()
	if err != nil {
		return nil, err
	}
	result := make([]controller, 0, len(list))
	for _, c := range list {
		result = append(result, controller{name: c.Name, maxBrightness: int(c.MaxBrightness)})
	}
	return result, nil
}

func scanControllers(root string) ([]controller, error) {
	dir := filepath.Join(root, "class", "backlight")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var result []controller
	for _, entry := range entries {
		maxValue, err := readInt(filepath.Join(dir, entry.Name(), "max_brightness"))
		if err != nil {
			logger.Warning(err)
			continue
		}
		result = append(result, controller{name: entry.Name(), maxBrightness: int(maxValue)})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result, nil
}

func NewSysfs(opts Options) (*Sysfs, error) {
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = DefaultSysfsRoot
	}
	s := &Sysfs{
		root:           opts.SysfsRoot,
		preSuspendNode: opts.PreSuspendNode,
		inputIRQs:      make(map[int]struct{}, len(opts.InputWakeupIRQs)),
	}
	for _, irq := range opts.InputWakeupIRQs {
		s.inputIRQs[irq] = struct{}{}
	}

	controllers, err := listControllers(s.root)
	if err != nil {
		return nil, xerrors.Errorf("list backlight controllers: %w", err)
	}
	if len(controllers) == 0 {
		return nil, errors.New("no backlight controller found")
	}
	s.controller = controllers[0]
	if opts.Controller != "" {
		found := false
		for _, c := range controllers {
			if c.name == opts.Controller {
				s.controller = c
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("backlight controller %q not found", opts.Controller)
		}
	}
	if err := checkName(s.controller.name); err != nil {
		return nil, err
	}
	logger.Infof("use backlight %q max %d", s.controller.name, s.controller.maxBrightness)
	return s, nil
}

func checkName(name string) error {
	if strings.ContainsRune(name, '/') || name == "" ||
		name == "." || name == ".." {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}

func (s *Sysfs) backlightFile(attr string) string {
	return filepath.Join(s.root, "class", "backlight", s.controller.name, attr)
}

func (s *Sysfs) powerFile(attr string) string {
	return filepath.Join(s.root, "power", attr)
}

func (s *Sysfs) MaxBrightness() int {
	return s.controller.maxBrightness
}

func (s *Sysfs) Brightness() (int, error) {
	v, err := readInt(s.backlightFile("brightness"))
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (s *Sysfs) SetBrightness(value int) error {
	if value < 0 {
		value = 0
	} else if value > s.controller.maxBrightness {
		value = s.controller.maxBrightness
	}
	return writeString(s.backlightFile("brightness"), strconv.Itoa(value))
}

func (s *Sysfs) SetPanelPower(on bool) error {
	v := blPowerPowerdown
	if on {
		v = blPowerUnblank
	}
	return writeString(s.backlightFile("bl_power"), strconv.Itoa(v))
}

func (s *Sysfs) PreSuspend() error {
	if s.preSuspendNode == "" {
		logger.Debug("no pre-suspend node configured")
		return nil
	}
	return writeString(s.preSuspendNode, "1")
}

// ReadWakeupCount blocks while wakeup events are being processed.
func (s *Sysfs) ReadWakeupCount() (int64, error) {
	return readInt(s.powerFile("wakeup_count"))
}

// WriteWakeupCount fails when new wakeup events were registered since
// the count was read.
func (s *Sysfs) WriteWakeupCount(n int64) error {
	return writeString(s.powerFile("wakeup_count"), strconv.FormatInt(n, 10))
}

func (s *Sysfs) CanSuspend() bool {
	content, err := os.ReadFile(s.powerFile("state"))
	if err != nil {
		return false
	}
	for _, state := range strings.Fields(string(content)) {
		if state == "mem" {
			return true
		}
	}
	return false
}

// Suspend returns after the system resumed.
func (s *Sysfs) Suspend() error {
	return writeString(s.powerFile("state"), "mem")
}

func (s *Sysfs) WakeupSource() (WakeupSource, error) {
	irq, err := readInt(s.powerFile("pm_wakeup_irq"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return WakeupDevice, nil
		}
		return WakeupDevice, err
	}
	if _, ok := s.inputIRQs[int(irq)]; ok {
		return WakeupUser, nil
	}
	return WakeupDevice, nil
}

func readInt(filename string) (int64, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return 0, xerrors.Errorf("read %s: %w", filename, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(content)), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("parse %s: %w", filename, err)
	}
	return v, nil
}

func writeString(filename, value string) error {
	fh, err := os.OpenFile(filename, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return xerrors.Errorf("open %s: %w", filename, err)
	}
	defer fh.Close()

	_, err = fh.WriteString(value)
	if err != nil {
		return xerrors.Errorf("write %q to %s: %w", value, filename, err)
	}
	return nil
}
