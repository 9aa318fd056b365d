// FilePath: server/watchdog/api/resources/api.resource.helpers.go
package resources

import (
	"encoding/json"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/schema"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(s string) reflect.Value {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	return d
}

func decodeQuery(dst interface{}, r *http.Request) error {
	return queryDecoder.Decode(dst, r.URL.Query())
}

// asAPIError keeps typed errors from the service layer and wraps the rest.
func asAPIError(err error, msg string, requestID string) *errors.APIError {
	if apiErr, ok := errors.As(err); ok {
		return apiErr.WithRequestID(requestID)
	}
	return errors.NewInternalError(msg, err).WithRequestID(requestID)
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
