package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/utils/errutil"
)

// schoolsHandler serves the registered school list as JSON
func schoolsHandler(registry *model.SchoolRegistry) http.HandlerFunc {
	type schoolResponse struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	type response struct {
		Schools []schoolResponse `json:"schools"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		entries := registry.List()
		resp := response{
			Schools: make([]schoolResponse, len(entries)),
		}
		for i, entry := range entries {
			resp.Schools[i] = schoolResponse{
				ID:   entry.School.ID,
				Name: entry.School.Name,
			}
		}

		writeJSON(w, r, resp)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck // header already committed
}
