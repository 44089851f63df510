// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NormalTimeout time.Duration
	DimTimeout    time.Duration
	OffTimeout    time.Duration
	// DimPercent is the dim brightness in percent of the maximum.
	DimPercent   int
	RetryCount   int
	SuspendGuard time.Duration
	SleepMargin  time.Duration

	SocketPath      string
	Backlight       string
	PreSuspendNode  string
	InputWakeupIRQs []int
}

func DefaultConfig() Config {
	return Config{
		NormalTimeout: defaultNormalTimeout,
		DimTimeout:    defaultDimTimeout,
		OffTimeout:    defaultOffTimeout,
		DimPercent:    defaultDimPercent,
		RetryCount:    defaultRetryCount,
		SuspendGuard:  defaultSuspendGuard,
		SleepMargin:   defaultSleepMargin,
		SocketPath:    DefaultSocketPath,
	}
}

// fileConfig mirrors Config in the YAML file, durations in seconds.
type fileConfig struct {
	NormalTimeout   *int    `yaml:"normal-timeout"`
	DimTimeout      *int    `yaml:"dim-timeout"`
	OffTimeout      *int    `yaml:"off-timeout"`
	DimPercent      *int    `yaml:"dim-brightness-percent"`
	RetryCount      *int    `yaml:"retry-count"`
	SuspendGuard    *int    `yaml:"suspend-guard"`
	SleepMargin     *int    `yaml:"sleep-margin"`
	SocketPath      *string `yaml:"socket"`
	Backlight       *string `yaml:"backlight"`
	PreSuspendNode  *string `yaml:"pre-suspend-node"`
	InputWakeupIRQs []int   `yaml:"input-wakeup-irqs"`
}

const envPrefix = "DDE_DISPLAY_PM_"

// LoadConfig layers the YAML file and then the environment over the
// defaults. A missing file is not an error; a broken one is reported
// together with the configuration built without it.
func LoadConfig(filename string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	content, err := os.ReadFile(filename)
	if err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(content, &fc); err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", filename, err))
		} else {
			fc.apply(&cfg)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}

	if getenv != nil {
		if err := applyEnv(&cfg, getenv); err != nil {
			errs = append(errs, err)
		}
	}
	cfg.sanitize()
	return cfg, errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (fc *fileConfig) apply(cfg *Config) {
	setDuration := func(dst *time.Duration, v *int) {
		if v != nil {
			*dst = seconds(*v)
		}
	}
	setDuration(&cfg.NormalTimeout, fc.NormalTimeout)
	setDuration(&cfg.DimTimeout, fc.DimTimeout)
	setDuration(&cfg.OffTimeout, fc.OffTimeout)
	setDuration(&cfg.SuspendGuard, fc.SuspendGuard)
	setDuration(&cfg.SleepMargin, fc.SleepMargin)
	if fc.DimPercent != nil {
		cfg.DimPercent = *fc.DimPercent
	}
	if fc.RetryCount != nil {
		cfg.RetryCount = *fc.RetryCount
	}
	if fc.SocketPath != nil {
		cfg.SocketPath = *fc.SocketPath
	}
	if fc.Backlight != nil {
		cfg.Backlight = *fc.Backlight
	}
	if fc.PreSuspendNode != nil {
		cfg.PreSuspendNode = *fc.PreSuspendNode
	}
	if fc.InputWakeupIRQs != nil {
		cfg.InputWakeupIRQs = fc.InputWakeupIRQs
	}
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	envInt := func(name string, fn func(int)) {
		value := getenv(envPrefix + name)
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		fn(n)
	}
	envString := func(name string, dst *string) {
		if value := getenv(envPrefix + name); value != "" {
			*dst = value
		}
	}

	envInt("NORMAL_TIMEOUT", func(n int) { cfg.NormalTimeout = seconds(n) })
	envInt("DIM_TIMEOUT", func(n int) { cfg.DimTimeout = seconds(n) })
	envInt("OFF_TIMEOUT", func(n int) { cfg.OffTimeout = seconds(n) })
	envInt("DIM_BRIGHTNESS", func(n int) { cfg.DimPercent = n })
	envInt("RETRY_COUNT", func(n int) { cfg.RetryCount = n })
	envString("SOCKET", &cfg.SocketPath)
	envString("BACKLIGHT", &cfg.Backlight)
	envString("PRE_SUSPEND_NODE", &cfg.PreSuspendNode)

	if value := getenv(envPrefix + "INPUT_WAKEUP_IRQS"); value != "" {
		irqs, err := parseIntList(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sINPUT_WAKEUP_IRQS: %w", envPrefix, err))
		} else {
			cfg.InputWakeupIRQs = irqs
		}
	}
	return errors.Join(errs...)
}

func parseIntList(value string) ([]int, error) {
	var result []int
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

func (cfg *Config) sanitize() {
	clampTimeout := func(d *time.Duration) {
		if *d < 0 {
			*d = 0
		}
	}
	clampTimeout(&cfg.NormalTimeout)
	clampTimeout(&cfg.DimTimeout)
	clampTimeout(&cfg.OffTimeout)
	if cfg.DimPercent < 1 || cfg.DimPercent > 100 {
		cfg.DimPercent = defaultDimPercent
	}
	if cfg.RetryCount < 1 {
		cfg.RetryCount = defaultRetryCount
	}
	if cfg.SuspendGuard <= 0 {
		cfg.SuspendGuard = defaultSuspendGuard
	}
	if cfg.SleepMargin <= 0 {
		cfg.SleepMargin = defaultSleepMargin
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath
	}
}
