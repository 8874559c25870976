package adminserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"smiley-admin/catalog"
	"smiley-admin/editor"
	"smiley-admin/notify"
	"smiley-admin/storage"
)

const maxJSONBody = 1 << 20

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps err to a status code and writes it with any pending
// notifications.
func respondError(w http.ResponseWriter, err error, notes ...notify.Message) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	body := map[string]any{"error": err.Error()}
	if len(notes) > 0 {
		body["notifications"] = notes
	}
	respondJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, editor.ErrIndexOutOfRange),
		errors.Is(err, storage.ErrEmptyKey),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrCapacityExceeded),
		errors.Is(err, editor.ErrUploadInProgress),
		errors.Is(err, editor.ErrDisabled):
		return http.StatusConflict
	case errors.Is(err, editor.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, editor.ErrSession), errors.Is(err, editor.ErrBatchEmpty):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string        { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func pageFrom(r *http.Request) catalog.Page {
	num := queryInt(r, "page", 0)
	if num == 0 {
		num = queryInt(r, "pageNum", 1)
	}
	return catalog.Page{Num: num, Size: queryInt(r, "pageSize", catalog.DefaultPageSize)}
}
