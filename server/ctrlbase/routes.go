package ctrlbase

import (
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"go.senan.xyz/crate"
	"go.senan.xyz/crate/handlerutil"
)

func AddRoutes(c *Controller, r *mux.Router, logHTTP bool) {
	var ware []handlerutil.Middleware
	if logHTTP {
		ware = append(ware, handlerutil.Log)
	}
	ware = append(ware,
		handlerutil.BasicCORS,
		handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)),
	)
	r.Use(mux.MiddlewareFunc(handlerutil.Chain(ware...)))

	r.Handle("/", c.H(func(r *http.Request) *Response {
		return JSON(struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		}{crate.Name, crate.Version})
	}))
	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	})

	r.NotFoundHandler = c.H(func(r *http.Request) *Response {
		return Error(http.StatusNotFound, "Not found")
	})
}
