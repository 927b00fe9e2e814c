package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/playforge/esports-platform/services"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case err.Error() == "http: request body too large":
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	js, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to marshal JSON response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(js)
}

func idParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

func badRequestResponse(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, jsonResponse{
		"code":  "BAD_REQUEST",
		"error": err.Error(),
	})
}

// mapServiceError преобразует типизированные ошибки сервисов в HTTP-ответ
// со стабильным машинным кодом.
func mapServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrRegistrationNotFound),
		errors.Is(err, services.ErrImageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateRegistration),
		errors.Is(err, services.ErrTournamentNameConflict),
		errors.Is(err, services.ErrConcurrencyConflict),
		errors.Is(err, services.ErrCapacityExceeded),
		errors.Is(err, services.ErrTournamentHasRegistrations):
		status = http.StatusConflict
	case errors.Is(err, services.ErrRegistrationClosed),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrIllegalStatusForGameType):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrForbiddenOperation):
		status = http.StatusForbidden
	case services.ErrorCode(err) == "VALIDATION_ERROR":
		status = http.StatusUnprocessableEntity
	default:
		slog.Error("internal server error", slog.Any("error", err))
		message = "the server encountered a problem and could not process your request"
	}

	writeJSON(w, status, jsonResponse{
		"code":  services.ErrorCode(err),
		"error": message,
	})
}
