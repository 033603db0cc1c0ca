package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/export"
	"github.com/kommetio/reportgrid/internal/jcr"
)

// Identity resolves the caller for a request. Returning an error rejects the
// request with 401.
type Identity func(r *http.Request) (*auth.Data, error)

// queryRequest is the JSON body of POST /query.
type queryRequest struct {
	JCR        json.RawMessage `json:"jcr,omitempty"`
	Query      string          `json:"query,omitempty"`
	Format     string          `json:"format,omitempty"`
	Mode       string          `json:"mode,omitempty"`
	ExportName string          `json:"exportName,omitempty"`
}

// errorEnvelope is the JSON error body. A single failure uses message;
// validation failures list all messages.
type errorEnvelope struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

// Handler serves the query endpoint. The caller identity is installed on the
// request context for the duration of the request only; the engine resolves
// it from there.
func Handler(engine *Engine, identity Identity, log *zap.Logger) http.Handler {
	if identity == nil {
		identity = func(*http.Request) (*auth.Data, error) { return auth.System(), nil }
	}
	if log == nil {
		log = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		caller, err := identity(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := auth.NewContext(r.Context(), caller)

		var body queryRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
			return
		}

		req := Request{
			Query:      body.Query,
			Mode:       body.Mode,
			ExportName: body.ExportName,
		}
		if len(body.JCR) > 0 {
			j, err := jcr.Deserialize(body.JCR)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			req.JCR = j
		}
		if body.Format != "" {
			format, err := export.ParseFormat(body.Format)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			req.Format = format
		}

		resp, err := engine.Run(ctx, nil, req)
		if err != nil {
			var cerr *ClientError
			if errors.As(err, &cerr) {
				writeErrors(w, http.StatusBadRequest, cerr.Messages)
				return
			}
			log.Error("report request failed",
				zap.String("user", string(callerID(caller))),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.Header().Set("Content-Type", resp.ContentType)
		if resp.FileName != "" {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.FileName))
		}
		w.WriteHeader(http.StatusOK)
		w.Write(resp.Body)
	})
	return mux
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{Success: false, Message: message})
}

func writeErrors(w http.ResponseWriter, status int, messages []string) {
	if len(messages) == 1 {
		writeError(w, status, messages[0])
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{Success: false, Messages: messages})
}
