package http

import (
	"time"

	"github.com/google/uuid"

	"kotizy/internal/core"
	"kotizy/internal/ledger"
)

const dateLayout = "2006-01-02"

type memberRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	BirthDate   string `json:"birth_date,omitempty"`
	Gender      string `json:"gender,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Status      string `json:"status"`
	Active      *bool  `json:"active,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	DistrictID  int64  `json:"district_id,omitempty"`
	TributeID   int64  `json:"tribute_id,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

func (req memberRequest) toMember(id uuid.UUID) (core.Member, error) {
	m := core.Member{
		ID:          id,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Gender:      core.Gender(req.Gender),
		PhoneNumber: req.PhoneNumber,
		Status:      core.MemberStatus(req.Status),
		Active:      true,
		ImageURL:    req.ImageURL,
		DistrictID:  req.DistrictID,
		TributeID:   req.TributeID,
	}
	if req.Active != nil {
		m.Active = *req.Active
	}
	if req.BirthDate != "" {
		t, err := time.Parse(dateLayout, req.BirthDate)
		if err != nil {
			return core.Member{}, err
		}
		m.BirthDate = t
	}
	if req.ParentID != "" {
		pid, err := uuid.Parse(req.ParentID)
		if err != nil {
			return core.Member{}, err
		}
		m.ParentID = &pid
	}
	return m, nil
}

type memberResponse struct {
	ID             string `json:"id"`
	SequenceNumber int64  `json:"sequence_number"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	BirthDate      string `json:"birth_date,omitempty"`
	Gender         string `json:"gender,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	Status         string `json:"status"`
	Active         bool   `json:"active"`
	ImageURL       string `json:"image_url,omitempty"`
	DistrictID     int64  `json:"district_id,omitempty"`
	DistrictName   string `json:"district_name,omitempty"`
	TributeID      int64  `json:"tribute_id,omitempty"`
	TributeName    string `json:"tribute_name,omitempty"`
	ParentID       string `json:"parent_id,omitempty"`
	ParentName     string `json:"parent_name,omitempty"`
	ChildrenCount  int    `json:"children_count"`
	CreatedAt      string `json:"created_at"`
}

func toMemberResponse(m core.Member) memberResponse {
	resp := memberResponse{
		ID:             m.ID.String(),
		SequenceNumber: m.SequenceNumber,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Gender:         string(m.Gender),
		PhoneNumber:    m.PhoneNumber,
		Status:         string(m.Status),
		Active:         m.Active,
		ImageURL:       m.ImageURL,
		DistrictID:     m.DistrictID,
		DistrictName:   m.DistrictName,
		TributeID:      m.TributeID,
		TributeName:    m.TributeName,
		ParentName:     m.ParentName,
		ChildrenCount:  m.ChildrenCount,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339),
	}
	if !m.BirthDate.IsZero() {
		resp.BirthDate = m.BirthDate.Format(dateLayout)
	}
	if m.ParentID != nil {
		resp.ParentID = m.ParentID.String()
	}
	return resp
}

func toMemberResponses(members []core.Member) []memberResponse {
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	return out
}

type paymentResponse struct {
	ID             string `json:"id"`
	ContributionID string `json:"contribution_id"`
	AmountAriary   int64  `json:"amount_ariary"`
	Amount         string `json:"amount"`
	PaymentDate    string `json:"payment_date"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

func toPaymentResponse(p core.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID.String(),
		ContributionID: p.ContributionID.String(),
		AmountAriary:   p.Amount.Ariary,
		Amount:         p.Amount.String(),
		PaymentDate:    p.PaymentDate.Format(time.RFC3339),
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

type contributionResponse struct {
	ID              string            `json:"id"`
	MemberID        string            `json:"member_id"`
	MemberName      string            `json:"member_name,omitempty"`
	Year            int               `json:"year"`
	AmountAriary    int64             `json:"amount_ariary"`
	Amount          string            `json:"amount"`
	TotalPaidAriary int64             `json:"total_paid_ariary"`
	RemainingAriary int64             `json:"remaining_ariary"`
	Status          string            `json:"status"`
	DueDate         string            `json:"due_date"`
	Payments        []paymentResponse `json:"payments,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

func toContributionResponse(c core.Contribution) contributionResponse {
	resp := contributionResponse{
		ID:              c.ID.String(),
		MemberID:        c.MemberID.String(),
		MemberName:      c.MemberName,
		Year:            c.Year,
		AmountAriary:    c.Amount.Ariary,
		Amount:          c.Amount.String(),
		TotalPaidAriary: c.TotalPaid.Ariary,
		RemainingAriary: c.Remaining.Ariary,
		Status:          string(c.Status),
		DueDate:         c.DueDate.Format(time.RFC3339),
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       c.UpdatedAt.Format(time.RFC3339),
	}
	for _, p := range c.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	return resp
}

func toContributionResponses(contributions []core.Contribution) []contributionResponse {
	out := make([]contributionResponse, 0, len(contributions))
	for _, c := range contributions {
		out = append(out, toContributionResponse(c))
	}
	return out
}

type contributionUpdateRequest struct {
	AmountAriary *int64  `json:"amount_ariary,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	Status       *string `json:"status,omitempty"`
}

type paymentCreateRequest struct {
	AmountAriary int64  `json:"amount_ariary"`
	PaymentDate  string `json:"payment_date,omitempty"`
	Status       string `json:"status,omitempty"`
}

type paymentUpdateRequest struct {
	AmountAriary *int64  `json:"amount_ariary,omitempty"`
	PaymentDate  *string `json:"payment_date,omitempty"`
	Status       *string `json:"status,omitempty"`
}

type generationFailureResponse struct {
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}

type generationResponse struct {
	Year      int                         `json:"year"`
	Generated int                         `json:"generated"`
	Skipped   int                         `json:"skipped"`
	Failures  []generationFailureResponse `json:"failures,omitempty"`
	Total     int                         `json:"total"`
}

func toGenerationResponse(res ledger.GenerationResult) generationResponse {
	resp := generationResponse{
		Year:      res.Year,
		Generated: res.Generated,
		Skipped:   res.Skipped,
		Total:     len(res.Contributions),
	}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, generationFailureResponse{
			MemberID: f.MemberID.String(),
			Error:    f.Err.Error(),
		})
	}
	return resp
}

type reportResponse struct {
	Year                  int                    `json:"year"`
	Members               int                    `json:"members"`
	TotalExpectedAriary   int64                  `json:"total_expected_ariary"`
	TotalExpected         string                 `json:"total_expected"`
	TotalCollectedAriary  int64                  `json:"total_collected_ariary"`
	TotalCollected        string                 `json:"total_collected"`
	TotalRemainingAriary  int64                  `json:"total_remaining_ariary"`
	TotalRemaining        string                 `json:"total_remaining"`
	PercentCollected      int                    `json:"percent_collected"`
	AtRisk                []contributionResponse `json:"at_risk,omitempty"`
}

func toReportResponse(r core.YearReport) reportResponse {
	return reportResponse{
		Year:                 r.Year,
		Members:              r.Members,
		TotalExpectedAriary:  r.TotalExpected.Ariary,
		TotalExpected:        r.TotalExpected.String(),
		TotalCollectedAriary: r.TotalCollected.Ariary,
		TotalCollected:       r.TotalCollected.String(),
		TotalRemainingAriary: r.TotalRemaining.Ariary,
		TotalRemaining:       r.TotalRemaining.String(),
		PercentCollected:     r.PercentCollected,
		AtRisk:               toContributionResponses(r.AtRisk),
	}
}

type taxonomyRequest struct {
	Name string `json:"name"`
}

type taxonomyResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
