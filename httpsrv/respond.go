package httpsrv

import (
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/shortenlabs/shortener/cmn"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/cmn/log"
)

// json is the wire codec for every request/response body; jsoniter in its
// stdlib-compatible configuration.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds decodeJSON's request body read so a malicious or
// broken client can't exhaust memory on an admin endpoint.
const maxBodyBytes = 1 << 20 // 1 MiB

// errorBody is the error envelope: {errcode, errinfo}.
type errorBody struct {
	ErrCode string `json:"errcode"`
	ErrInfo string `json:"errinfo"`
}

// listBody is the pagination envelope: {data, meta}.
type listBody struct {
	Data interface{} `json:"data"`
	Meta cmn.Meta    `json:"meta"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeList(w http.ResponseWriter, data interface{}, meta cmn.Meta) {
	writeJSON(w, http.StatusOK, listBody{Data: data, Meta: meta})
}

// writeError maps a service error to its {status, envelope} pair. Errors
// outside the cmn/errors taxonomy (a programming bug, an unwrapped driver
// error) are treated as StorageError so nothing ever leaks a raw Go error
// string to the client.
func writeError(w http.ResponseWriter, err error) {
	kindErr, ok := cerrors.As(err)
	if !ok {
		kindErr = cerrors.Storage("internal error", err).(*cerrors.Error)
	}
	msg := kindErr.Msg
	if kindErr.Kind == cerrors.KindStorageError || kindErr.Kind == cerrors.KindCodeExhausted {
		// Never surface storage/driver detail to the client; the
		// cause is logged here instead.
		log.Default().Errorw("request failed", "errcode", kindErr.ErrCode(), "error", err)
		msg = "internal error"
	}
	writeJSON(w, kindErr.HTTPStatus(), errorBody{ErrCode: kindErr.ErrCode(), ErrInfo: msg})
}

// decodeJSON decodes r's body into v, reading at most maxBodyBytes of it;
// fields that v does not declare are ignored.
// A decode failure isn't one of the domain error Kinds (it's a wire-level
// concern, not InvalidUrl/InvalidCode), so callers get the plain decode
// error and write the 400 themselves via writeBadRequest.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// writeBadRequest answers a malformed-request-body failure with the same
// {errcode, errinfo} shape as a domain error, tagged INVALID_REQUEST.
func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{ErrCode: "INVALID_REQUEST", ErrInfo: err.Error()})
}
