package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
	"github.com/secmon-lab/hackernyous/pkg/utils/errutil"
)

type profileRequest struct {
	Email     string `json:"email"`
	Interests string `json:"interests"`
	Frequency string `json:"frequency"`
	DayOfWeek int    `json:"day_of_week"`
}

type profileResponse struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	Interests   string     `json:"interests"`
	Frequency   string     `json:"frequency"`
	DayOfWeek   int        `json:"day_of_week"`
	SentCount   int        `json:"sent_count"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	resp := profileResponse{
		UserID:    p.UserID,
		Email:     p.Email,
		Interests: p.Interests,
		Frequency: p.Frequency.String(),
		DayOfWeek: int(p.DayOfWeek),
		SentCount: p.SentCount,
	}
	if !p.LastUpdated.IsZero() {
		t := p.LastUpdated
		resp.LastUpdated = &t
	}
	return resp
}

func getProfileHandler(uc ProfileUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := uc.Get(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, statusOf(err))
			return
		}
		writeJSON(w, r, http.StatusOK, toProfileResponse(profile))
	}
}

func putProfileHandler(uc ProfileUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
			return
		}

		profile, err := uc.Save(r.Context(), usecase.SaveProfileInput{
			UserID:    chi.URLParam(r, "userID"),
			Email:     req.Email,
			Interests: req.Interests,
			Frequency: types.Frequency(req.Frequency),
			DayOfWeek: time.Weekday(req.DayOfWeek),
		})
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, statusOf(err))
			return
		}
		writeJSON(w, r, http.StatusOK, toProfileResponse(profile))
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}
