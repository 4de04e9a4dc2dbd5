// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/antgroup/lineage/internal/config"
)

// applyLogConfig wires the [log] section of the server config into
// the process-wide logrus logger every package in this module logs
// through.
func applyLogConfig(lc config.Log) {
	if lc.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if lc.Level != "" {
		level, err := logrus.ParseLevel(lc.Level)
		if err != nil {
			logrus.Warnf("invalid log level %q, keeping default", lc.Level)
		} else {
			logrus.SetLevel(level)
		}
	}
	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logrus.Errorf("open log file %s: %v, logging to stderr", lc.File, err)
			return
		}
		logrus.SetOutput(f)
	}
}
