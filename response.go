package conv

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strconv"
)

// Response is a fully-formed response. A handler returning *Response
// bypasses rendering entirely: status, headers, and body are written
// unmodified.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// WithHeader sets a response header and returns the response for chaining.
func (resp *Response) WithHeader(key, value string) *Response {
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	resp.Header.Set(key, value)
	return resp
}

func (resp *Response) write(w http.ResponseWriter) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	//nolint:errcheck // best-effort after WriteHeader
	w.Write(resp.Body)
}

var htmlPattern = regexp.MustCompile(`(?i)<(!doctype|[a-z][a-z0-9-]*)(\s[^>]*)?/?>`)

// A few extensions the stdlib table does not carry builtin.
var extraMIMETypes = map[string]string{
	".txt": "text/plain; charset=utf-8",
	".csv": "text/csv; charset=utf-8",
	".md":  "text/markdown; charset=utf-8",
}

// extContentType maps a file-extension suffix on the final path segment
// through the standard extension→MIME table. Empty when the path has no
// recognized extension.
func extContentType(requestPath string) string {
	ext := path.Ext(path.Base(requestPath))
	if ext == "" {
		return ""
	}
	if ct, ok := extraMIMETypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// renderResult writes a handler's return value. Content type priority:
// path extension, then HTML sniffing for strings, then octet-stream for
// raw bytes, then JSON for everything else. Handlers without a value
// result render 204 No Content.
func renderResult(w http.ResponseWriter, r *http.Request, value any, hasValue bool) {
	if !hasValue {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if resp, ok := value.(*Response); ok {
		resp.write(w)
		return
	}

	var body []byte
	var contentType string

	switch v := value.(type) {
	case string:
		body = []byte(v)
		if htmlPattern.MatchString(v) {
			contentType = "text/html; charset=utf-8"
		} else {
			contentType = "text/plain; charset=utf-8"
		}
	case []byte:
		body = v
		contentType = "application/octet-stream"
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			writeError(w, Internal("cannot encode response: %v", err))
			return
		}
		body = encoded
		contentType = "application/json"
	}

	if ct := extContentType(r.URL.Path); ct != "" {
		contentType = ct
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort after WriteHeader
	w.Write(body)
}

// errorBody is the JSON serialization of a dispatch failure.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// writeError maps a failure to its status and serializes it as the JSON
// body. Errors outside the taxonomy map to internal/500.
func writeError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindInternal, Message: err.Error()}
	}

	body := errorBody{
		Error:   e.Kind.String(),
		Message: e.Message,
		Status:  e.StatusCode(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Status)
	//nolint:errcheck,errchkjson // best-effort after WriteHeader
	json.NewEncoder(w).Encode(body)
}
