package ctrlbase

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

type Response struct {
	// code is 200 unless set
	code int
	body any
	// code is 303
	redirect string
	// code is >= 400, body is {"error": err}
	err string
}

func JSON(body any) *Response {
	return &Response{code: http.StatusOK, body: body}
}

func JSONCode(code int, body any) *Response {
	return &Response{code: code, body: body}
}

func Error(code int, format string, a ...any) *Response {
	return &Response{code: code, err: fmt.Sprintf(format, a...)}
}

// Redirect responds with a 303. paths starting with a single "/" get the proxy prefix
func Redirect(to string) *Response {
	return &Response{redirect: to}
}

type errorResponse struct {
	Error string `json:"error"`
}

type (
	handlerJSON    func(r *http.Request) *Response
	handlerJSONRaw func(w http.ResponseWriter, r *http.Request) *Response
)

func (c *Controller) H(h handlerJSON) http.Handler {
	return c.HR(func(_ http.ResponseWriter, r *http.Request) *Response {
		return h(r)
	})
}

// HR is like H, except the handler also has the ResponseWriter so that it
// can save the session before the response is written
func (c *Controller) HR(h handlerJSONRaw) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h(w, r)
		if resp == nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "useless handler return"})
			return
		}
		switch {
		case resp.redirect != "":
			to := resp.redirect
			if strings.HasPrefix(to, "/") && !strings.HasPrefix(to, "//") {
				to = c.prefixed(to)
			}
			http.Redirect(w, r, to, http.StatusSeeOther)
		case resp.err != "":
			code := resp.code
			if code == 0 {
				code = http.StatusInternalServerError
			}
			writeJSON(w, code, errorResponse{Error: resp.err})
		default:
			code := resp.code
			if code == 0 {
				code = http.StatusOK
			}
			writeJSON(w, code, resp.body)
		}
	})
}

// prefixed adds the proxy prefix to a path that may carry a query
func (c *Controller) prefixed(to string) string {
	if c.ProxyPrefix == "" {
		return to
	}
	return strings.TrimSuffix(c.Path("/"), "/") + to
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("error writing json response: %v", err)
	}
}
