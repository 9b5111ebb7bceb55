package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/output"
	"go.mongodb.org/mongo-driver/mongo"
)

// handleClaimsGet lists withdrawals with the output data needed to finalize
// them on L1. Withdrawals whose output is not cut yet have no proof.
func (s *Server) handleClaimsGet(w http.ResponseWriter, r *http.Request) {
	filter := models.WithdrawalFilter{Address: r.URL.Query().Get("address")}
	if raw := r.URL.Query().Get("sequence"); raw != "" {
		sequence, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			ERROR(w, http.StatusBadRequest, fmt.Errorf("invalid sequence: %w", err))
			return
		}
		filter.Sequence = &sequence
	}
	page := pageFromQuery(r)

	withdrawals, total, err := s.store.ListWithdrawals(r.Context(), filter, page)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	outputs := map[uint64]*models.Output{}
	claims := make([]models.Claim, 0, len(withdrawals))
	for _, wd := range withdrawals {
		claim := models.Claim{Withdrawal: wd}
		if wd.MerkleRoot != "" {
			out, ok := outputs[wd.OutputIndex]
			if !ok {
				out, err = s.store.GetOutput(r.Context(), wd.OutputIndex)
				if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
					ERROR(w, http.StatusInternalServerError, err)
					return
				}
				outputs[wd.OutputIndex] = out
			}
			if out != nil {
				claim.Version = base64.StdEncoding.EncodeToString(output.Version(wd.OutputIndex))
				claim.StateRoot = out.StateRoot
				claim.LastBlockHash = out.LastBlockHash
			}
		}
		claims = append(claims, claim)
	}

	JSON(w, http.StatusOK, models.PaginatedResult{
		Items:      claims,
		TotalCount: total,
		Offset:     page.Offset,
		Limit:      page.Limit,
	})
}
