package api

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"supplywatcher/internal/metrics"
	"supplywatcher/internal/settings"
	"supplywatcher/internal/supply"
	"supplywatcher/internal/version"
)

const maxBodyBytes = 1 << 20

type settingsView struct {
	Owner              string `json:"owner"`
	Target             string `json:"target"`
	MaxAllowedIncrease string `json:"max_allowed_increase"`
	State              string `json:"state"`
}

type targetRequest struct {
	Target  string `json:"target"`
	Expires int64  `json:"expires"`
}

type thresholdRequest struct {
	MaxAllowedIncrease string `json:"max_allowed_increase"`
	Expires            int64  `json:"expires"`
}

type evaluateRequest struct {
	Samples []string `json:"samples"`
}

type evaluateResponse struct {
	Triggered bool   `json:"triggered"`
	Payload   string `json:"payload,omitempty"`
	Token     string `json:"token,omitempty"`
	OldSupply string `json:"old_supply,omitempty"`
	NewSupply string `json:"new_supply,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) view() settingsView {
	snap := s.settings.Snapshot()
	threshold := "0"
	if snap.MaxIncrease != nil {
		threshold = snap.MaxIncrease.String()
	}
	return settingsView{
		Owner:              s.settings.Owner().Hex(),
		Target:             snap.Target.Hex(),
		MaxAllowedIncrease: threshold,
		State:              s.settings.State().String(),
	}
}

func (s *Server) putTarget(w http.ResponseWriter, r *http.Request) {
	body, caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req targetRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := checkExpiry(req.Expires, s.now()); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !common.IsHexAddress(req.Target) {
		writeError(w, http.StatusBadRequest, "target must be a hex address")
		return
	}

	target := common.HexToAddress(req.Target)
	err := s.settings.SetTarget(caller, target)
	s.recordChange(w, "target", caller, err)
	if err == nil {
		s.logger.Info().Str("caller", caller.Hex()).Str("target", target.Hex()).Msg("target updated")
	}
}

func (s *Server) putThreshold(w http.ResponseWriter, r *http.Request) {
	body, caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req thresholdRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := checkExpiry(req.Expires, s.now()); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(req.MaxAllowedIncrease), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "max_allowed_increase must be a base-10 integer")
		return
	}

	err := s.settings.SetThreshold(caller, value)
	s.recordChange(w, "threshold", caller, err)
	if err == nil {
		s.logger.Info().Str("caller", caller.Hex()).Str("max_allowed_increase", value.String()).Msg("threshold updated")
	}
}

func (s *Server) recordChange(w http.ResponseWriter, field string, caller common.Address, err error) {
	switch {
	case err == nil:
		metrics.SettingsChangesTotal.WithLabelValues(field, "applied").Inc()
		writeJSON(w, http.StatusOK, s.view())
	case errors.Is(err, settings.ErrUnauthorized):
		metrics.SettingsChangesTotal.WithLabelValues(field, "unauthorized").Inc()
		s.logger.Warn().Str("caller", caller.Hex()).Str("field", field).Msg("rejected settings change from non-owner")
		writeError(w, http.StatusForbidden, "caller is not the owner")
	case errors.Is(err, settings.ErrInvalidValue):
		metrics.SettingsChangesTotal.WithLabelValues(field, "invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		metrics.SettingsChangesTotal.WithLabelValues(field, "error").Inc()
		writeError(w, http.StatusInternalServerError, "settings update failed")
	}
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) ([]byte, common.Address, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return nil, common.Address{}, false
	}
	caller, err := RecoverSigner(body, r.Header.Get(SignatureHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return nil, common.Address{}, false
	}
	return body, caller, true
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	samples := make([][]byte, 0, len(req.Samples))
	for _, raw := range req.Samples {
		decoded, err := hexutil.Decode(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "samples must be 0x-prefixed hex")
			return
		}
		samples = append(samples, decoded)
	}

	triggered, payload, err := supply.Evaluate(samples)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := evaluateResponse{Triggered: triggered}
	if triggered {
		decoded, err := supply.DecodeAlertPayload(payload)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Payload = hexutil.Encode(payload)
		resp.Token = decoded.Token.Hex()
		resp.OldSupply = decoded.OldSupply.String()
		resp.NewSupply = decoded.NewSupply.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) window(w http.ResponseWriter, _ *http.Request) {
	out := []string{}
	if s.windowSource != nil {
		for _, item := range s.windowSource.Window() {
			out = append(out, hexutil.Encode(item))
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"samples": out})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
