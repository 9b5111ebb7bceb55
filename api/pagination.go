package api

import (
	"net/http"
	"strconv"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// pageFromQuery reads offset, limit and descending. Invalid values fall back
// to the defaults.
func pageFromQuery(r *http.Request) models.Page {
	q := r.URL.Query()

	offset, err := strconv.ParseInt(q.Get("offset"), 10, 64)
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.ParseInt(q.Get("limit"), 10, 64)
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	descending, _ := strconv.ParseBool(q.Get("descending"))

	return models.Page{Offset: offset, Limit: limit, Descending: descending}
}
