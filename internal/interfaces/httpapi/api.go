package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"chainnotes/internal/application"
	"chainnotes/internal/domain"

	"github.com/gorilla/mux"
)

const maxTextBodyBytes = 1 << 20

type storeTextBody struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type storeTextResponse struct {
	Message string `json:"message"`
	Hash    string `json:"hash"`
}

type retrieveTextResponse struct {
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	view, err := s.snapshots.Refresh(r.Context(), application.RefreshRequest{
		UserID:    UserIDFromContext(r.Context()),
		Address:   mux.Vars(r)["address"],
		StartDate: query.Get("startDate"),
		EndDate:   query.Get("endDate"),
	})
	if err != nil {
		respondServiceError(w, err, "Error fetching transactions data")
		return
	}
	if !view.Filtered && len(view.Raw) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(view.Raw)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleStoreText(w http.ResponseWriter, r *http.Request) {
	var body storeTextBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextBodyBytes)).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	hash, err := s.texts.Store(r.Context(), application.StoreTextRequest{
		UserID: UserIDFromContext(r.Context()),
		Text:   body.Text,
		Label:  body.Label,
	})
	if err != nil {
		respondServiceError(w, err, "An error occurred while storing the text")
		return
	}
	respondJSON(w, http.StatusCreated, storeTextResponse{Message: "Text stored successfully", Hash: hash})
}

func (s *Server) handleRetrieveText(w http.ResponseWriter, r *http.Request) {
	data, err := s.texts.Retrieve(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["label"])
	if err != nil {
		respondServiceError(w, err, "An error occurred while retrieving the text")
		return
	}
	respondJSON(w, http.StatusOK, retrieveTextResponse{Message: "Text retrieved successfully", Data: data})
}

var serviceErrors = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrUnknownUser, http.StatusNotFound, "No such user"},
	{domain.ErrAddressRequired, http.StatusBadRequest, "Address is required"},
	{domain.ErrTextRequired, http.StatusBadRequest, "Text is required"},
	{domain.ErrLabelRequired, http.StatusBadRequest, "Label is required"},
	{domain.ErrLabelTooLong, http.StatusBadRequest, "Label is too long"},
	{domain.ErrLabelExists, http.StatusBadRequest, "Label already exists for this user"},
	{domain.ErrLabelNotFound, http.StatusNotFound, "No text found with the given label"},
	{domain.ErrContentNotFound, http.StatusNotFound, "Text not found for the provided hash"},
}

// respondServiceError maps domain errors to status codes. Anything unrecognised
// is a 500 carrying only the fallback message; details stay in the server log.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, domain.ErrUnauthorized) {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	for _, candidate := range serviceErrors {
		if errors.Is(err, candidate.err) {
			respondError(w, candidate.status, candidate.message)
			return
		}
	}
	respondError(w, http.StatusInternalServerError, fallback)
}
