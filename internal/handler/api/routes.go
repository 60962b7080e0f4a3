package api

import (
	"github.com/labstack/echo/v4"

	xhttp "SignalGate/pkg/http"
)

// Routes bundles the API handlers into the single registration point the
// HTTP server expects.
type Routes struct {
	Admission *AdmissionEchoHandler
	Control   *ControlEchoHandler
}

func NewRoutes(admission *AdmissionEchoHandler, control *ControlEchoHandler) *Routes {
	return &Routes{Admission: admission, Control: control}
}

func (r *Routes) RegisterRoutes(e *echo.Echo) {
	r.Admission.RegisterRoutes(e)
	r.Control.RegisterRoutes(e)
}

var _ xhttp.Handler = (*Routes)(nil)
