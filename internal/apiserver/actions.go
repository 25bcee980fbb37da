package apiserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/traderadar/backend/internal/entry"
	"github.com/traderadar/backend/internal/facade"
)

type lastVersionResponse struct {
	LastVersion int64 `json:"lastVersion"`
}

type payloadResponse struct {
	Payload entry.Payload `json:"payload"`
}

func parseListParams(r *http.Request) (facade.ListParams, error) {
	page, err := parseOptionalInt(r, "page", 1)
	if err != nil {
		return facade.ListParams{}, err
	}
	limit, err := parseOptionalInt(r, "limit", 0)
	if err != nil {
		return facade.ListParams{}, err
	}
	return facade.ListParams{
		Page:     page,
		Limit:    limit,
		SortedBy: queryParam(r, "sortedBy"),
		Order:    queryParam(r, "order"),
	}, nil
}

func (s *Service) handleActionTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	list, err := parseListParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := parseOptionalIntPtr(r, "status")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tradeType, err := parseOptionalIntPtr(r, "tradeType")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.actions.GetTrades(r.Context(), facade.TradeParams{
		ListParams: list,
		Status:     status,
		TradeType:  tradeType,
		TraderAddr: queryParam(r, "traderAddr"),
	})
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch trades")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Service) handleActionTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	result, err := s.actions.GetTrade(r.Context(), queryParam(r, "tradeObjAddr"))
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch trade")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Service) handleActionTraderStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	list, err := parseListParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.actions.GetTraderStats(r.Context(), list)
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch trader stats")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Service) handleActionMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	list, err := parseListParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.actions.GetMessages(r.Context(), list)
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch messages")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Service) handleActionMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	result, err := s.actions.GetMessage(r.Context(), queryParam(r, "messageObjAddr"))
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch message")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Service) handleActionUserStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	list, err := parseListParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.actions.GetUserStats(r.Context(), list)
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch user stats")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Service) handleActionLastVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	version, err := s.actions.GetLastVersion(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch last version")
		return
	}
	s.respondJSON(w, http.StatusOK, lastVersionResponse{LastVersion: version})
}

// handleEntry builds unsigned entry-function payloads for the wallet to sign
// and submit. Nothing is sent on-chain from here.
func (s *Service) handleEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	if s.entry == nil {
		s.respondError(w, http.StatusServiceUnavailable, "entry payloads are disabled: MODULE_ADDRESS is not configured")
		return
	}

	var (
		payload entry.Payload
		err     error
	)
	switch action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/entry/"), "/"); action {
	case "create-trade":
		var args entry.CreateTradeArgs
		if err := decodeJSONBody(r, &args); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err = s.entry.CreateTrade(args)
	case "update-trade":
		var args entry.UpdateTradeArgs
		if err := decodeJSONBody(r, &args); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err = s.entry.UpdateTrade(args)
	case "complete-trade", "cancel-trade":
		var args entry.TradeRefArgs
		if err := decodeJSONBody(r, &args); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if action == "complete-trade" {
			payload, err = s.entry.CompleteTrade(args)
		} else {
			payload, err = s.entry.CancelTrade(args)
		}
	default:
		s.respondError(w, http.StatusNotFound, "unknown entry function")
		return
	}
	if err != nil {
		s.respondFailure(w, err, "Failed to build entry payload")
		return
	}
	s.respondJSON(w, http.StatusOK, payloadResponse{Payload: payload})
}

func decodeJSONBody(r *http.Request, destination any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(destination); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != io.EOF {
		return fmt.Errorf("invalid request body: multiple JSON values")
	}
	return nil
}
