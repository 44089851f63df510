// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, filename, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filename), 0755))
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
}

func readFile(t *testing.T, filename string) string {
	t.Helper()
	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	return string(content)
}

func newTestTree(t *testing.T) string {
	root := t.TempDir()
	for _, name := range []string{"intel_backlight", "acpi_video0"} {
		dir := filepath.Join(root, "class", "backlight", name)
		writeFile(t, filepath.Join(dir, "max_brightness"), "1000\n")
		writeFile(t, filepath.Join(dir, "brightness"), "400\n")
		writeFile(t, filepath.Join(dir, "bl_power"), "0\n")
	}
	writeFile(t, filepath.Join(root, "power", "wakeup_count"), "17\n")
	writeFile(t, filepath.Join(root, "power", "state"), "freeze mem disk\n")
	return root
}

func TestNewSysfs(t *testing.T) {
	root := newTestTree(t)

	s, err := NewSysfs(Options{SysfsRoot: root})
	require.NoError(t, err)
	assert.Equal(t, "acpi_video0", s.controller.name)
	assert.Equal(t, 1000, s.MaxBrightness())

	s, err = NewSysfs(Options{SysfsRoot: root, Controller: "intel_backlight"})
	require.NoError(t, err)
	assert.Equal(t, "intel_backlight", s.controller.name)

	_, err = NewSysfs(Options{SysfsRoot: root, Controller: "missing"})
	assert.Error(t, err)

	_, err = NewSysfs(Options{SysfsRoot: t.TempDir()})
	assert.Error(t, err)
}

func TestSysfs_Brightness(t *testing.T) {
	root := newTestTree(t)
	s, err := NewSysfs(Options{SysfsRoot: root, Controller: "intel_backlight"})
	require.NoError(t, err)

	v, err := s.Brightness()
	require.NoError(t, err)
	assert.Equal(t, 400, v)

	require.NoError(t, s.SetBrightness(55))
	assert.Equal(t, "55", readFile(t, s.backlightFile("brightness")))

	require.NoError(t, s.SetBrightness(5000))
	assert.Equal(t, "1000", readFile(t, s.backlightFile("brightness")))

	require.NoError(t, s.SetBrightness(-3))
	assert.Equal(t, "0", readFile(t, s.backlightFile("brightness")))
}

func TestSysfs_PanelPower(t *testing.T) {
	root := newTestTree(t)
	s, err := NewSysfs(Options{SysfsRoot: root})
	require.NoError(t, err)

	require.NoError(t, s.SetPanelPower(false))
	assert.Equal(t, "4", readFile(t, s.backlightFile("bl_power")))
	require.NoError(t, s.SetPanelPower(true))
	assert.Equal(t, "0", readFile(t, s.backlightFile("bl_power")))
}

func TestSysfs_WakeupCount(t *testing.T) {
	root := newTestTree(t)
	s, err := NewSysfs(Options{SysfsRoot: root})
	require.NoError(t, err)

	n, err := s.ReadWakeupCount()
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	require.NoError(t, s.WriteWakeupCount(18))
	assert.Equal(t, "18", readFile(t, s.powerFile("wakeup_count")))

	assert.True(t, s.CanSuspend())
	require.NoError(t, s.Suspend())
	assert.Equal(t, "mem", readFile(t, s.powerFile("state")))

	writeFile(t, s.powerFile("state"), "freeze\n")
	assert.False(t, s.CanSuspend())
}

func TestSysfs_WakeupSource(t *testing.T) {
	root := newTestTree(t)
	s, err := NewSysfs(Options{SysfsRoot: root, InputWakeupIRQs: []int{45}})
	require.NoError(t, err)

	src, err := s.WakeupSource()
	require.NoError(t, err)
	assert.Equal(t, WakeupDevice, src)

	writeFile(t, s.powerFile("pm_wakeup_irq"), "45\n")
	src, err = s.WakeupSource()
	require.NoError(t, err)
	assert.Equal(t, WakeupUser, src)

	writeFile(t, s.powerFile("pm_wakeup_irq"), "9\n")
	src, err = s.WakeupSource()
	require.NoError(t, err)
	assert.Equal(t, WakeupDevice, src)
}

func TestSysfs_PreSuspend(t *testing.T) {
	root := newTestTree(t)
	s, err := NewSysfs(Options{SysfsRoot: root})
	require.NoError(t, err)
	assert.NoError(t, s.PreSuspend())

	node := filepath.Join(root, "devices", "panel", "pre_suspend")
	writeFile(t, node, "0")
	s, err = NewSysfs(Options{SysfsRoot: root, PreSuspendNode: node})
	require.NoError(t, err)
	require.NoError(t, s.PreSuspend())
	assert.Equal(t, "1", readFile(t, node))
}

func Test_checkName(t *testing.T) {
	assert.NoError(t, checkName("intel_backlight"))
	for _, name := range []string{"", ".", "..", "a/b"} {
		assert.Error(t, checkName(name), name)
	}
}
