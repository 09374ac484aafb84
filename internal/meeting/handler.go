package meeting

import (
	"encoding/json"
	"net/http"

	"github.com/soyeahso/sharkchat/internal/logging"
)

// Handler serves the call-setup endpoint: POST {attributes:{userPhone,userName}}
// answered with {success, connectionData?, error?}.
func Handler(setup Setup, log *logging.Logger) http.Handler {
	log = log.Sub("call-setup")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeSetup(w, http.StatusMethodNotAllowed, setupResponse{Error: "method not allowed"})
			return
		}

		var req setupRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			writeSetup(w, http.StatusBadRequest, setupResponse{Error: "invalid request body"})
			return
		}

		data, err := setup.Setup(r.Context(), req.Attributes)
		if err != nil {
			log.Error().Err(err).Msg("call setup failed")
			writeSetup(w, http.StatusInternalServerError, setupResponse{Error: UserMessage(err)})
			return
		}

		writeSetup(w, http.StatusOK, setupResponse{Success: true, ConnectionData: &data})
	})
}

func writeSetup(w http.ResponseWriter, status int, resp setupResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
