// meshd drives a fleet of Insteon devices over a powerline/RF modem: see
// spec.md for the protocol core this binary wires together. Grounded on
// the teacher's example/cmd/*/main.go bootstrap shape, with
// github.com/spf13/pflag (sourced from doismellburning-samoyed) in place
// of the teacher's bare flag package.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/internal/config"
	"github.com/insteonplm/meshd/internal/control"
	"github.com/insteonplm/meshd/internal/devicestate"
	"github.com/insteonplm/meshd/internal/fleet"
	"github.com/insteonplm/meshd/internal/scheduler"
	transportserial "github.com/insteonplm/meshd/internal/transport/serial"
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/commands"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/plm"
)

// plmAddress is meshd's own address, stamped into every outgoing frame's
// from field. It is a reserved address, never a configured device.
var plmAddress = address.New(0x00, 0x00, 0x01)

func main() {
	configDir := pflag.StringP("config-dir", "c", "", "directory holding the TOML configuration file")
	profile := pflag.StringP("profile", "p", "", "configuration profile name, e.g. \"docker\" loads docker.configuration.toml")
	port := pflag.StringP("port", "P", "", "override the configured serial port path")
	pflag.Parse()

	cfg, err := config.LoadConfig(*profile, *configDir)
	if err != nil {
		os.Stderr.WriteString("meshd: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	common.CurrentConfig = cfg

	level, err := charmlog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = charmlog.InfoLevel
	}
	common.Logger.SetLevel(level)

	store, err := devicestate.NewStore(common.DeviceStateDirectory)
	if err != nil {
		common.Logger.Fatal("meshd: devicestate store", "err", err)
	}

	modem, err := transportserial.Open(cfg, plmAddress)
	if err != nil {
		common.Logger.Fatal("meshd: serial transport", "err", err)
	}
	defer modem.Close()

	fl, err := fleet.New(cfg.Devices, modem, store)
	if err != nil {
		common.Logger.Fatal("meshd: fleet construction", "err", err)
	}

	for _, d := range fl.All() {
		d := d
		addr := d.Addr.String()
		commands.InitializeDevice(d, fl.Disp,
			func() {
				if err := fl.Persist(d); err != nil {
					common.Logger.Error("meshd: persist after init failed", "device", addr, "err", err)
				}
			},
			func(err error) {
				common.Logger.Warn("meshd: initialize failed", "device", addr, "err", err)
			},
		)
	}

	sched := scheduler.New(cfg, fl)
	if err := sched.Start(); err != nil {
		common.Logger.Fatal("meshd: scheduler start", "err", err)
	}
	defer sched.Stop()

	go pumpInbound(fl, modem)
	go pumpOutbound(fl, modem)

	router := control.NewRouter(fl)
	server := &http.Server{Addr: cfg.Service.BindAddr, Handler: router}
	go func() {
		common.Logger.Info("meshd: control surface listening", "addr", cfg.Service.BindAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Logger.Error("meshd: control surface stopped", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	common.Logger.Info("meshd: shutting down")
	server.Close()
}

// pumpInbound implements spec.md §5's "draining modem inbound frames into
// the dispatcher" scheduler activity: the one logical scheduler loop's
// inbound half, resolving each envelope's source address against the
// fleet arena before handing the decoded frame to the shared dispatcher.
func pumpInbound(fl *fleet.Fleet, modem plm.Modem) {
	for env := range modem.Inbound() {
		addr := address.New(env.SourceHi, env.SourceMid, env.SourceLow)
		d, ok := fl.Get(addr)
		if !ok {
			common.Logger.Debug("meshd: inbound frame from unconfigured device", "address", addr.String())
			continue
		}
		in, err := frame.Parse(env.Raw)
		if err != nil {
			common.Logger.Debug("meshd: dropping unparseable inbound frame", "address", addr.String(), "err", err)
			continue
		}
		if err := fl.Disp.Process(d, in, time.Now()); err != nil && err != common.ErrDuplicateInbound {
			// spec.md §4.2: duplicates are silently dropped, not worth a
			// log line per frame; every other outcome is worth tracing.
			common.Logger.Debug("meshd: dispatch outcome", "address", addr.String(), "err", err)
		}
	}
}

// pumpOutbound implements spec.md §5's "dispatching the next eligible
// outgoing frame from any device's queue to the modem when wait_to_send
// has elapsed" scheduler activity: the outbound half of the same round-
// robin loop pumpInbound drives the inbound half of. The modem is "the
// sole contended resource" (spec.md §5's Shared resources paragraph), so
// wait_to_send gates the whole pump once per tick, not per device; once
// the gate is open, every fleet device is polled via device.DequeueReady
// (which hands back the head frame of one non-empty label without the
// pump needing to know its name in advance) and at most one frame is sent
// before the next gate check, per "Outgoing frames... across labels the
// policy is externally chosen" (ordering across devices isn't prescribed
// either).
func pumpOutbound(fl *fleet.Fleet, modem plm.Modem) {
	ticker := time.NewTicker(common.OutboundPollInterval)
	defer ticker.Stop()
	nextSend := time.Now()
	for now := range ticker.C {
		if now.Before(nextSend) {
			continue
		}
		for _, d := range fl.All() {
			out, label, ok := d.DequeueReady()
			if !ok {
				continue
			}
			raw := frame.ToWire(*out, plmAddress, common.DefaultMaxHops)
			future := modem.Enqueue(plm.WireFrame{Raw: raw})
			go awaitPlmAck(d.Addr.String(), label, out, future)

			nextSend = now.Add(modem.WaitToSend())
			modem.SetWaitToSend(0)
			break
		}
	}
}

// awaitPlmAck resolves the modem's echo for a just-sent frame, marking it
// device-ack-eligible on success (spec.md §4.4/§4.5's validForAck gate) or
// invoking its PlmFailure callback on a modem-level nack or wait error. A
// modem nack reflects a local transport failure, not a device response, so
// unlike dispatch.resend it is surfaced to the sequence rather than
// retried automatically.
func awaitPlmAck(deviceAddr, label string, out *frame.Outgoing, future plm.AckFuture) {
	ok, err := future.Wait(context.Background())
	if err != nil {
		common.Logger.Warn("meshd: plm ack wait failed", "device", deviceAddr, "command", out.CommandName, "err", err)
		if out.PlmFailure != nil {
			out.PlmFailure()
		}
		return
	}
	if !ok {
		common.Logger.Debug("meshd: plm nacked outgoing frame", "device", deviceAddr, "command", out.CommandName, "label", label)
		if out.PlmFailure != nil {
			out.PlmFailure()
		}
		return
	}
	out.PlmAck = true
	if out.PlmSuccess != nil {
		out.PlmSuccess()
	}
}
