// Package ctrlauth provides the session routes: sign up, sign in, sign out,
// and password changes
package ctrlauth

import (
	"github.com/gorilla/mux"

	"go.senan.xyz/crate/auth"
	"go.senan.xyz/crate/server/ctrlbase"
)

type Controller struct {
	*ctrlbase.Controller
	auth *auth.Authenticator
}

func New(b *ctrlbase.Controller, authn *auth.Authenticator) *Controller {
	return &Controller{
		Controller: b,
		auth:       authn,
	}
}

func AddRoutes(c *Controller, r *mux.Router) {
	r.Use(c.WithSession, c.WithUser)
	r.Handle("/signup", c.HR(c.ServeSignUp)).Methods("POST")
	r.Handle("/login", c.HR(c.ServeLogin)).Methods("POST")
	r.Handle("/logout", c.HR(c.ServeLogout)).Methods("GET", "POST")
	r.Handle("/callback", c.H(c.ServeCallback)).Methods("GET")

	routUser := r.NewRoute().Subrouter()
	routUser.Use(c.WithRequireUser)
	routUser.Handle("/password", c.H(c.ServeChangePassword)).Methods("POST")
}
