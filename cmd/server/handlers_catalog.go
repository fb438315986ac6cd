package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookhive/pricing/internal/logger"
	"github.com/bookhive/pricing/pricing"
	"github.com/bookhive/pricing/quotes"
)

// respondDomainError maps the engine's error taxonomy onto HTTP status
// codes: authoring validation -> 422 with a field-level message, missing
// entities -> 404, workflow conflicts -> 409, catalog outages -> 503.
func (s *Server) respondDomainError(w http.ResponseWriter, message string, err error) {
	var ve *pricing.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "validation failed",
			Details: ve.Message,
			Field:   ve.Field,
		})
	case errors.Is(err, pricing.ErrUnknownService),
		errors.Is(err, pricing.ErrGroupNotFound),
		errors.Is(err, pricing.ErrRuleNotFound),
		errors.Is(err, quotes.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, quotes.ErrInvalidTransition):
		respondError(w, http.StatusConflict, message, err)
	case errors.Is(err, pricing.ErrCatalogUnavailable):
		logger.Error("catalog unavailable", "error", err)
		respondError(w, http.StatusServiceUnavailable, message, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// Services

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.catalog.ListServices()
	if err != nil {
		s.respondDomainError(w, "failed to list services", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	svc := &pricing.Service{
		ID:        uuid.New().String(),
		Name:      req.Name,
		BasePrice: req.BasePrice,
	}
	if err := s.catalog.CreateService(svc); err != nil {
		s.respondDomainError(w, "failed to create service", err)
		return
	}
	respondJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.catalog.GetService(chi.URLParam(r, "serviceId"))
	if err != nil {
		s.respondDomainError(w, "service not found", err)
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	svc := &pricing.Service{
		ID:        chi.URLParam(r, "serviceId"),
		Name:      req.Name,
		BasePrice: req.BasePrice,
	}
	if err := s.catalog.UpdateService(svc); err != nil {
		s.respondDomainError(w, "failed to update service", err)
		return
	}
	s.evaluator.Invalidate(svc.ID)
	respondJSON(w, http.StatusOK, svc)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "serviceId")
	if err := s.catalog.DeleteService(serviceID); err != nil {
		s.respondDomainError(w, "failed to delete service", err)
		return
	}
	s.evaluator.Invalidate(serviceID)
	w.WriteHeader(http.StatusNoContent)
}

// Rule groups

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.catalog.GetRuleGroupsForService(chi.URLParam(r, "serviceId"))
	if err != nil {
		s.respondDomainError(w, "failed to list rule groups", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	group := &pricing.RuleGroup{
		ID:            uuid.New().String(),
		ServiceID:     chi.URLParam(r, "serviceId"),
		AttributeName: req.AttributeName,
		DisplayName:   req.DisplayName,
	}
	if err := s.catalog.CreateRuleGroup(group); err != nil {
		s.respondDomainError(w, "failed to create rule group", err)
		return
	}
	s.evaluator.Invalidate(group.ServiceID)
	respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.catalog.GetRuleGroup(chi.URLParam(r, "groupId"))
	if err != nil {
		s.respondDomainError(w, "rule group not found", err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	existing, err := s.catalog.GetRuleGroup(groupID)
	if err != nil {
		s.respondDomainError(w, "rule group not found", err)
		return
	}

	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	group := &pricing.RuleGroup{
		ID:            groupID,
		ServiceID:     existing.ServiceID,
		AttributeName: req.AttributeName,
		DisplayName:   req.DisplayName,
	}
	if err := s.catalog.UpdateRuleGroup(group); err != nil {
		s.respondDomainError(w, "failed to update rule group", err)
		return
	}
	s.evaluator.Invalidate(existing.ServiceID)
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	group, err := s.catalog.GetRuleGroup(groupID)
	if err != nil {
		s.respondDomainError(w, "rule group not found", err)
		return
	}

	// Cascade: the group's rules are deleted with it.
	if err := s.catalog.DeleteRuleGroup(groupID); err != nil {
		s.respondDomainError(w, "failed to delete rule group", err)
		return
	}
	s.evaluator.Invalidate(group.ServiceID)
	w.WriteHeader(http.StatusNoContent)
}

// Rules

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.catalog.GetRulesForGroup(chi.URLParam(r, "groupId"))
	if err != nil {
		s.respondDomainError(w, "failed to list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	group, err := s.catalog.GetRuleGroup(groupID)
	if err != nil {
		s.respondDomainError(w, "rule group not found", err)
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := ruleFromRequest(uuid.New().String(), groupID, &req)
	warnings, err := s.catalog.CreateRule(rule)
	if err != nil {
		s.respondDomainError(w, "failed to create rule", err)
		return
	}
	if len(warnings) > 0 {
		logger.Warn("rule created with overlapping bands", "ruleId", rule.ID, "warnings", warnings)
	}

	s.evaluator.Invalidate(group.ServiceID)
	respondJSON(w, http.StatusCreated, RuleResponse{Rule: rule, Warnings: warnings})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.catalog.GetRule(chi.URLParam(r, "ruleId"))
	if err != nil {
		s.respondDomainError(w, "rule not found", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	existing, err := s.catalog.GetRule(ruleID)
	if err != nil {
		s.respondDomainError(w, "rule not found", err)
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := ruleFromRequest(ruleID, existing.RuleGroupID, &req)
	warnings, err := s.catalog.UpdateRule(rule)
	if err != nil {
		s.respondDomainError(w, "failed to update rule", err)
		return
	}

	s.invalidateForGroup(rule.RuleGroupID)
	respondJSON(w, http.StatusOK, RuleResponse{Rule: rule, Warnings: warnings})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	existing, err := s.catalog.GetRule(ruleID)
	if err != nil {
		s.respondDomainError(w, "rule not found", err)
		return
	}

	if err := s.catalog.DeleteRule(ruleID); err != nil {
		s.respondDomainError(w, "failed to delete rule", err)
		return
	}
	s.invalidateForGroup(existing.RuleGroupID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) invalidateForGroup(groupID string) {
	group, err := s.catalog.GetRuleGroup(groupID)
	if err != nil {
		// Snapshot cache may briefly serve stale rules; the next
		// mutation or TTL expiry clears it.
		logger.Warn("could not resolve group for cache invalidation", "groupId", groupID, "error", err)
		return
	}
	s.evaluator.Invalidate(group.ServiceID)
}

func ruleFromRequest(id, groupID string, req *RuleRequest) *pricing.Rule {
	return &pricing.Rule{
		ID:          id,
		RuleGroupID: groupID,
		Kind:        req.Kind,
		MinValue:    req.MinValue,
		MaxValue:    req.MaxValue,
		OptionKey:   req.OptionKey,
		OptionLabel: req.OptionLabel,
		ExtraPrice:  req.ExtraPrice,
		CustomQuote: req.CustomQuote,
	}
}
