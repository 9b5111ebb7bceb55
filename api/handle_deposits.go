package api

import (
	"net/http"
)

func (s *Server) handleUnconfirmedDepositsGet(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.ListUnconfirmedDeposits(r.Context(), pageFromQuery(r))
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}
