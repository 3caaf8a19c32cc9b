// Package control is the HTTP control surface spec.md §4.2 and its second
// Open Question (§9) require as the "higher layer" that probes a device's
// state explicitly — most notably after an alllink_cleanup_ack, which
// this core deliberately leaves device state untouched on. Grounded on the
// teacher's internal/handler/callback/callback.go (method-dispatch
// handlers returning a common.AppError) and internal/handler/control.go,
// ported from the teacher's bespoke net/http mux onto
// github.com/gorilla/mux (the teacher's exact dependency, otherwise only
// indirect).
package control

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/internal/fleet"
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/commands"
)

// Server adapts fleet operations onto HTTP handlers.
type Server struct {
	fl *fleet.Fleet
}

// NewRouter builds the mux.Router exposing the three routes
// SPEC_FULL.md's DOMAIN STACK names, in the teacher's APIv1Prefix-rooted
// route shape (internal/common.APIRescanRoute/APILinkRoute/APIStatusRoute).
func NewRouter(fl *fleet.Fleet) *mux.Router {
	s := &Server{fl: fl}
	r := mux.NewRouter()
	r.HandleFunc(common.APIRescanRoute, s.handleRescan).Methods(http.MethodPost)
	r.HandleFunc(common.APILinkRoute, s.handleLink).Methods(http.MethodPost)
	r.HandleFunc(common.APIStatusRoute, s.handleStatus).Methods(http.MethodGet)
	return r
}

// statusView is the JSON shape GET .../status returns.
type statusView struct {
	Address       string `json:"address"`
	Name          string `json:"name"`
	EngineVersion int    `json:"engine_version"`
	DevCat        *byte  `json:"dev_cat,omitempty"`
	SubCat        *byte  `json:"sub_cat,omitempty"`
	Firmware      *byte  `json:"firmware,omitempty"`
	Status        byte   `json:"status"`
	AldbDelta     byte   `json:"aldb_delta"`
	AldbLoaded    bool   `json:"aldb_loaded"`
	AldbRecords   int    `json:"aldb_records"`
}

func (s *Server) resolveDevice(w http.ResponseWriter, r *http.Request) (*fleet.Fleet, address.Address, bool) {
	addr, err := address.Parse(mux.Vars(r)["address"])
	if err != nil {
		writeAppError(w, common.NewBadRequestError(err.Error(), err))
		return nil, address.Address{}, false
	}
	if _, ok := s.fl.Get(addr); !ok {
		writeAppError(w, common.NewNotFoundError("device not configured: "+addr.String(), nil))
		return nil, address.Address{}, false
	}
	return s.fl, addr, true
}

// handleRescan starts a full ALDB rescan (spec.md §4.7), the explicit
// probe path this control surface exists to offer in place of the TODO
// spec.md §9 says the original cleanup-ack path left unresolved.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	fl, addr, ok := s.resolveDevice(w, r)
	if !ok {
		return
	}
	d, _ := fl.Get(addr)

	err := commands.QueryALDB(d, fl.Disp,
		func() {
			if err := fl.Persist(d); err != nil {
				common.Logger.Error("control: persist after rescan failed", "device", addr.String(), "err", err)
			}
		},
		func(err error) {
			common.Logger.Warn("control: rescan failed", "device", addr.String(), "err", err)
		},
	)
	if err != nil {
		writeAppError(w, common.NewBadRequestError(err.Error(), err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleLink starts AddPLMtoDevice all-linking (spec.md §4.6).
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	fl, addr, ok := s.resolveDevice(w, r)
	if !ok {
		return
	}
	d, _ := fl.Get(addr)

	commands.AddPLMtoDevice(d, fl.Disp,
		func() {
			if err := fl.Persist(d); err != nil {
				common.Logger.Error("control: persist after link failed", "device", addr.String(), "err", err)
			}
		},
		func(err error) {
			common.Logger.Warn("control: link failed", "device", addr.String(), "err", err)
		},
	)
	w.WriteHeader(http.StatusAccepted)
}

// handleStatus reports the device's currently known attributes without
// issuing any wire traffic; callers wanting fresh data hit rescan first.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	fl, addr, ok := s.resolveDevice(w, r)
	if !ok {
		return
	}
	d, _ := fl.Get(addr)

	view := statusView{
		Address:       addr.String(),
		Name:          fl.Name(addr),
		EngineVersion: int(d.Attrs.EngineVersion),
		Status:        d.Attrs.Status,
		AldbDelta:     d.ALDB.Delta(),
		AldbLoaded:    d.ALDB.Loaded(),
		AldbRecords:   d.ALDB.Len(),
	}
	if d.Attrs.DevCatSet {
		v := d.Attrs.DevCat
		view.DevCat = &v
	}
	if d.Attrs.SubCatSet {
		v := d.Attrs.SubCat
		view.SubCat = &v
	}
	if d.Attrs.FirmwareSet {
		v := d.Attrs.Firmware
		view.Firmware = &v
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		common.Logger.Error("control: encode status response failed", "device", addr.String(), "err", err)
	}
}

// writeAppError renders a common.AppError (the teacher's
// internal/common.AppError shape) as its carried HTTP status and message.
func writeAppError(w http.ResponseWriter, appErr *common.AppError) {
	http.Error(w, appErr.Error(), appErr.Code())
}
