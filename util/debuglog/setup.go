// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package debuglog configures Logrus for the kineo-federation binaries: file
// and line info relative to the module root, UTC timestamps with microsecond
// precision, and an adjustable level.
//
// Importing this package runs Configure with default options. Main packages
// that want something else call Configure again.
package debuglog

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

func init() {
	Configure(Options{})
}

// Options control the logger's behavior. The zero value is the default.
type Options struct {
	// If true, some output is highlighted with ANSI colors. Setting the
	// environment variable "CLICOLOR_FORCE" to "1" has the same effect.
	ForceColors bool

	// Minimum level to log. Defaults to logrus.InfoLevel.
	Level logrus.Level

	// If not nil, this logger is configured instead of
	// logrus.StandardLogger(). Used by unit tests.
	Logger *logrus.Logger
}

// Configure sets up the logger. It's safe to call more than once, but not
// concurrently.
func Configure(opts Options) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Level == 0 {
		opts.Level = logrus.InfoLevel
	}
	opts.Logger.SetLevel(opts.Level)
	opts.Logger.SetReportCaller(true)
	// ReplaceHooks so that repeated calls don't stack hooks.
	hooks := make(logrus.LevelHooks)
	hooks.Add(utcHook{})
	hooks.Add(newFilenameHook())
	opts.Logger.ReplaceHooks(hooks)
	opts.Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:             true,
		TimestampFormat:           "2006-01-02 15:04:05.000000 MST",
		ForceColors:               opts.ForceColors,
		EnvironmentOverrideColors: true,
	})
	opts.Logger.WithFields(logrus.Fields{
		"forceColors": opts.ForceColors,
		"level":       opts.Level.String(),
	}).Debug("Initialized Logrus")
}

// utcHook converts entry timestamps to UTC.
type utcHook struct{}

func (utcHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (utcHook) Fire(entry *logrus.Entry) error {
	entry.Time = entry.Time.UTC()
	return nil
}

// filenameHook trims the module root off caller file paths.
type filenameHook struct {
	prefix string
}

// localPath is the path of this file relative to the module root.
const localPath = "util/debuglog/setup.go"

func newFilenameHook() filenameHook {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return filenameHook{}
	}
	if !strings.HasSuffix(file, localPath) {
		panic(fmt.Sprintf("debuglog: can't compute module root for log "+
			"filenames; %v doesn't end in %v", file, localPath))
	}
	return filenameHook{
		prefix: file[:len(file)-len(localPath)],
	}
}

func (hook filenameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook filenameHook) Fire(entry *logrus.Entry) error {
	if entry.HasCaller() {
		entry.Caller.File = strings.TrimPrefix(entry.Caller.File, hook.prefix)
	}
	return nil
}
