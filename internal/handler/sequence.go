package handler

import (
	"context"
	"net/http"
)

type sequenceService interface {
	Next(ctx context.Context) (int64, error)
}

type SequenceHandler struct {
	sequences sequenceService
}

func NewSequenceHandler(sequences sequenceService) *SequenceHandler {
	return &SequenceHandler{sequences: sequences}
}

func (h *SequenceHandler) Register(mux *http.ServeMux, serviceAuth func(http.Handler) http.Handler) {
	mux.Handle("POST /sequence", serviceAuth(http.HandlerFunc(h.Next)))
}

func (h *SequenceHandler) Next(w http.ResponseWriter, r *http.Request) {
	v, err := h.sequences.Next(r.Context())
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]int64{"value": v})
}
