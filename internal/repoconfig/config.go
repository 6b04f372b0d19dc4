// Package repoconfig loads the per-repository worlddriven configuration.
package repoconfig

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/ini.v1"
)

// FileName is the name of the configuration file in the default branch of a
// repository.
const FileName = ".worlddriven.ini"

const (
	DefaultBaseMergeTimeInHours = 240
	DefaultPerCommitTimeInHours = 0
	DefaultBaseCloseTimeInHours = 240
	DefaultMergeMethod          = MergeMethodSquash

	// MaxHours is the largest accepted hour value, its duration in seconds
	// still fits into a time.Duration.
	MaxHours = 2_500_000
)

type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
)

func (m MergeMethod) valid() bool {
	switch m {
	case MergeMethodMerge, MergeMethodSquash, MergeMethodRebase:
		return true
	default:
		return false
	}
}

const (
	keyBaseMergeTime = "baseMergeTimeInHours"
	keyPerCommitTime = "perCommitTimeInHours"
	keyBaseCloseTime = "baseCloseTimeInHours"
	keyMergeMethod   = "merge_method"
)

// preambleSection is prepended to the file to collect keys that appear before
// the first section header, they are not part of [DEFAULT].
const preambleSection = "[worlddriven-preamble]\n"

// Config is the merge and close timing configuration of a repository.
type Config struct {
	BaseMergeTimeInHours float64
	PerCommitTimeInHours float64
	BaseCloseTimeInHours float64
	MergeMethod          MergeMethod
}

// Default returns the configuration that is used when a repository has no or
// an invalid configuration file.
func Default() Config {
	return Config{
		BaseMergeTimeInHours: DefaultBaseMergeTimeInHours,
		PerCommitTimeInHours: DefaultPerCommitTimeInHours,
		BaseCloseTimeInHours: DefaultBaseCloseTimeInHours,
		MergeMethod:          DefaultMergeMethod,
	}
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"baseMergeTime: %gh, perCommitTime: %gh, baseCloseTime: %gh, mergeMethod: %s",
		c.BaseMergeTimeInHours, c.PerCommitTimeInHours, c.BaseCloseTimeInHours, c.MergeMethod,
	)
}

// Parse parses the content of a configuration file.
// Only keys in the [DEFAULT] section are evaluated. Values that are missing
// or invalid are replaced by their default, the names of the invalid keys are
// returned in invalidKeys.
// An error is only returned when data is not in ini format, the returned
// Config is then the default configuration.
func Parse(data []byte) (cfg Config, invalidKeys []string, err error) {
	cfg = Default()

	f, err := ini.LoadSources(
		ini.LoadOptions{InsensitiveKeys: true},
		append([]byte(preambleSection), data...),
	)
	if err != nil {
		return cfg, nil, err
	}

	sec := f.Section(ini.DefaultSection)

	for _, v := range []struct {
		key string
		dst *float64
	}{
		{key: keyBaseMergeTime, dst: &cfg.BaseMergeTimeInHours},
		{key: keyPerCommitTime, dst: &cfg.PerCommitTimeInHours},
		{key: keyBaseCloseTime, dst: &cfg.BaseCloseTimeInHours},
	} {
		name := strings.ToLower(v.key)
		if !sec.HasKey(name) {
			continue
		}

		val, err := sec.Key(name).Float64()
		if err != nil || !validHours(val) {
			invalidKeys = append(invalidKeys, v.key)
			continue
		}

		*v.dst = val
	}

	if sec.HasKey(keyMergeMethod) {
		m := MergeMethod(strings.ToLower(sec.Key(keyMergeMethod).String()))
		if m.valid() {
			cfg.MergeMethod = m
		} else {
			invalidKeys = append(invalidKeys, keyMergeMethod)
		}
	}

	return cfg, invalidKeys, nil
}

func validHours(v float64) bool {
	return v >= 0 && v <= MaxHours && !math.IsInf(v, 0) && !math.IsNaN(v)
}
