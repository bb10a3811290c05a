package http

import (
	"net/http"
	"time"

	"kotizy/internal/core"
	"kotizy/internal/ledger"
)

type paymentWithContribution struct {
	Payment      paymentResponse      `json:"payment"`
	Contribution contributionResponse `json:"contribution"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	contributionID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid contribution id")
		return
	}

	var req paymentCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	params := ledger.RecordPaymentParams{
		ContributionID: contributionID,
		Amount:         core.Money{Ariary: req.AmountAriary},
		Status:         core.PaymentStatus(req.Status),
	}
	if req.PaymentDate != "" {
		t, err := time.Parse(time.RFC3339, req.PaymentDate)
		if err != nil {
			badRequest(w, "invalid payment_date: "+err.Error())
			return
		}
		params.PaymentDate = t
	}

	payment, contribution, err := s.ledger.RecordPayment(r.Context(), params)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateYear(contribution.Year)
	respondJSON(w, http.StatusCreated, paymentWithContribution{
		Payment:      toPaymentResponse(payment),
		Contribution: toContributionResponse(contribution),
	})
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid payment id")
		return
	}

	p, err := s.ledger.GetPayment(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid payment id")
		return
	}

	var req paymentUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	params := ledger.UpdatePaymentParams{ID: id}
	if req.AmountAriary != nil {
		params.Amount = &core.Money{Ariary: *req.AmountAriary}
	}
	if req.PaymentDate != nil {
		t, err := time.Parse(time.RFC3339, *req.PaymentDate)
		if err != nil {
			badRequest(w, "invalid payment_date: "+err.Error())
			return
		}
		params.PaymentDate = &t
	}
	if req.Status != nil {
		st := core.PaymentStatus(*req.Status)
		params.Status = &st
	}

	payment, contribution, err := s.ledger.UpdatePayment(r.Context(), params)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateYear(contribution.Year)
	respondJSON(w, http.StatusOK, paymentWithContribution{
		Payment:      toPaymentResponse(payment),
		Contribution: toContributionResponse(contribution),
	})
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid payment id")
		return
	}

	contribution, err := s.ledger.DeletePayment(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateYear(contribution.Year)
	respondJSON(w, http.StatusOK, toContributionResponse(contribution))
}
