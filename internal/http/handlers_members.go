package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func pathInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	members, err := s.directory.ListMembers(r.Context(), activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toMemberResponses(members))
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	m, err := req.toMember(uuid.Nil)
	if err != nil {
		badRequest(w, "invalid member: "+err.Error())
		return
	}

	created, err := s.directory.CreateMember(r.Context(), m)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMemberResponse(created))
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid member id")
		return
	}

	m, err := s.directory.GetMember(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toMemberResponse(m))
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid member id")
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	m, err := req.toMember(id)
	if err != nil {
		badRequest(w, "invalid member: "+err.Error())
		return
	}

	updated, err := s.directory.UpdateMember(r.Context(), m)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toMemberResponse(updated))
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid member id")
		return
	}

	if err := s.directory.DeleteMember(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListDistricts(w http.ResponseWriter, r *http.Request) {
	districts, err := s.directory.ListDistricts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]taxonomyResponse, 0, len(districts))
	for _, d := range districts {
		out = append(out, taxonomyResponse{ID: d.ID, Name: d.Name})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateDistrict(w http.ResponseWriter, r *http.Request) {
	var req taxonomyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	d, err := s.directory.CreateDistrict(r.Context(), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, taxonomyResponse{ID: d.ID, Name: d.Name})
}

func (s *Server) handleDeleteDistrict(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid district id")
		return
	}

	if err := s.directory.DeleteDistrict(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListTributes(w http.ResponseWriter, r *http.Request) {
	tributes, err := s.directory.ListTributes(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]taxonomyResponse, 0, len(tributes))
	for _, tr := range tributes {
		out = append(out, taxonomyResponse{ID: tr.ID, Name: tr.Name})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTribute(w http.ResponseWriter, r *http.Request) {
	var req taxonomyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	tr, err := s.directory.CreateTribute(r.Context(), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, taxonomyResponse{ID: tr.ID, Name: tr.Name})
}

func (s *Server) handleDeleteTribute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid tribute id")
		return
	}

	if err := s.directory.DeleteTribute(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
