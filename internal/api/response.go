package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindPermanent, errs.KindConflict:
		return http.StatusBadRequest
	case errs.KindDisallowed:
		return http.StatusForbidden
	case errs.KindUnreachable, errs.KindTransient:
		return http.StatusBadGateway
	case errs.KindDriverMissing:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
