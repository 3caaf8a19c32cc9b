// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package common

import "time"

const (
	APIv1Prefix = "/api/v1"

	ConfigDirectory = "./res"
	ConfigFileName  = "configuration.toml"

	DeviceStateDirectory = "./res/devices"

	APIRescanRoute = APIv1Prefix + "/devices/{address}/rescan"
	APILinkRoute   = APIv1Prefix + "/devices/{address}/link"
	APIStatusRoute = APIv1Prefix + "/devices/{address}/status"

	// Hop-based wait-to-send delay constants, per message-length class.
	HopDelayStandardMs = 50
	HopDelayExtendedMs = 109

	// Dedup-window delay constants. Distinct from the wait-to-send delay
	// above; these reflect observed echo/retransmission timing rather than
	// the PLM's own send-suppression window.
	DedupDelayStandardMs = 87
	DedupDelayExtendedMs = 183

	MaxHopArrayLen = 10

	// DefaultMaxHops is the hop budget meshd stamps into every outgoing
	// frame's flags byte. Insteon devices support 0-3; 3 gives messages the
	// most retry headroom across a mesh at the cost of slightly longer
	// propagation delay, and matches the PLM's own factory default.
	DefaultMaxHops byte = 3

	// OutboundPollInterval is how often the outbound half of spec.md §5's
	// scheduler checks every fleet device's queues for a frame whose
	// wait_to_send window has elapsed.
	OutboundPollInterval = 5 * time.Millisecond

	// Engine versions.
	EngineI1   byte = 0x00
	EngineI2   byte = 0x01
	EngineI2CS byte = 0x02

	// ALDB scan/write addressing.
	AldbStartMSB byte = 0x0F
	AldbStartLSB byte = 0xF8

	StateSetALDBDelta = "set_aldb_delta"
)
