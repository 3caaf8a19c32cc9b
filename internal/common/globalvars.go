// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

var (
	ServiceName    string
	ServiceVersion string
	CurrentConfig  *Config

	// Logger is the package-scoped structured logger every component logs
	// through, in place of the teacher's package-scoped LoggingClient.
	// Created here as a timestamped stderr logger, so packages and their
	// tests can log without setup; cmd/meshd sets its level from
	// configuration at startup.
	Logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{ReportTimestamp: true})
)
