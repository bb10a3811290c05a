package http

import (
	"net/http"
	"strings"
	"time"

	"kotizy/internal/core"
	"kotizy/internal/ledger"
)

func (s *Server) handleGenerateYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		badRequest(w, "invalid year")
		return
	}

	result, err := s.ledger.GenerateForYear(r.Context(), year)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateYear(year)
	respondJSON(w, http.StatusOK, toGenerationResponse(result))
}

func (s *Server) handleEnsureContribution(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid member id")
		return
	}
	year, err := pathInt(r, "year")
	if err != nil {
		badRequest(w, "invalid year")
		return
	}

	c, created, err := s.ledger.EnsureForMember(r.Context(), memberID, year)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.invalidateYear(year)
	}
	respondJSON(w, status, toContributionResponse(c))
}

func (s *Server) handleGetMemberContribution(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid member id")
		return
	}
	year, err := pathInt(r, "year")
	if err != nil {
		badRequest(w, "invalid year")
		return
	}

	c, err := s.ledger.GetByMemberAndYear(r.Context(), memberID, year)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toContributionResponse(c))
}

// handleListYear lists a year's contributions with optional name search and
// an outstanding-balance floor, e.g. ?q=rakoto&min_remaining=5000.
func (s *Server) handleListYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		badRequest(w, "invalid year")
		return
	}

	query := r.URL.Query().Get("q")
	contributions, err := s.ledger.ListYear(r.Context(), year, query)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if raw := r.URL.Query().Get("min_remaining"); raw != "" {
		floor, err := core.ParseAriary(raw)
		if err != nil {
			badRequest(w, "invalid min_remaining: "+err.Error())
			return
		}
		filtered := contributions[:0]
		for _, c := range contributions {
			if c.Remaining.Ariary >= floor.Ariary {
				filtered = append(filtered, c)
			}
		}
		contributions = filtered
	}

	respondJSON(w, http.StatusOK, toContributionResponses(contributions))
}

// handleYearReport aggregates collection progress, optionally over a
// name-filtered slice of the roster (?q=rakoto).
func (s *Server) handleYearReport(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		badRequest(w, "invalid year")
		return
	}

	query := r.URL.Query().Get("q")
	key := reportCacheKey(year)
	if query != "" {
		key += ":q=" + strings.ToLower(query)
	}
	if report, ok := s.reportCache.Get(key); ok {
		respondJSON(w, http.StatusOK, toReportResponse(report))
		return
	}

	var report core.YearReport
	if query == "" {
		report, err = s.ledger.YearReport(r.Context(), year)
	} else {
		var snapshot []core.Contribution
		snapshot, err = s.ledger.ListYear(r.Context(), year, query)
		if err == nil {
			report = core.BuildYearReport(year, snapshot)
		}
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.reportCache.Set(key, report)
	respondJSON(w, http.StatusOK, toReportResponse(report))
}

// handleListContributionPayments returns the payment history of one
// contribution, oldest first.
func (s *Server) handleListContributionPayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid contribution id")
		return
	}

	c, err := s.ledger.GetContribution(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]paymentResponse, 0, len(c.Payments))
	for _, p := range c.Payments {
		out = append(out, toPaymentResponse(p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetContribution(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid contribution id")
		return
	}

	c, err := s.ledger.GetContribution(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toContributionResponse(c))
}

func (s *Server) handleUpdateContribution(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid contribution id")
		return
	}

	var req contributionUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	params := ledger.UpdateContributionParams{ID: id}
	if req.AmountAriary != nil {
		params.Amount = &core.Money{Ariary: *req.AmountAriary}
	}
	if req.DueDate != nil {
		t, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			badRequest(w, "invalid due_date: "+err.Error())
			return
		}
		params.DueDate = &t
	}
	if req.Status != nil {
		st := core.ContributionStatus(*req.Status)
		params.Status = &st
	}

	c, err := s.ledger.UpdateContribution(r.Context(), params)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateYear(c.Year)
	respondJSON(w, http.StatusOK, toContributionResponse(c))
}

func (s *Server) handleDeleteContribution(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid contribution id")
		return
	}

	c, err := s.ledger.GetContribution(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.ledger.DeleteContribution(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateYear(c.Year)
	respondJSON(w, http.StatusNoContent, nil)
}
