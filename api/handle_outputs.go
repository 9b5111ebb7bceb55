package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

func (s *Server) handleOutputsGet(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.ListOutputs(r.Context(), pageFromQuery(r))
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

func (s *Server) handleOutputGet(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		ERROR(w, http.StatusBadRequest, fmt.Errorf("invalid output index: %w", err))
		return
	}

	output, err := s.store.GetOutput(r.Context(), index)
	if errors.Is(err, mongo.ErrNoDocuments) {
		ERROR(w, http.StatusNotFound, fmt.Errorf("output %d not found", index))
		return
	}
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, output)
}
