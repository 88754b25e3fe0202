package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("[server] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		glog.Errorf("[server] %v", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", models.ErrValidation, err)
	}
	return nil
}

// check runs the validate tags of v.
func (s *Server) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %s", models.ErrValidation, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}

// pageParams reads page and limit, falling back to def and capping limit at
// the configured maximum.
func (s *Server) pageParams(r *http.Request, def int) (page, limit int, err error) {
	page, limit = 1, def
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, fmt.Errorf("%w: bad page %q", models.ErrValidation, v)
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("%w: bad limit %q", models.ErrValidation, v)
		}
	}
	if max := s.cfg.Feed.MaxPageSize; max > 0 && limit > max {
		limit = max
	}
	return page, limit, nil
}
