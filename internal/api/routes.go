package api

import (
	"net/http"

	"cometrelay/internal/auth"
	"cometrelay/internal/db"
	"cometrelay/internal/pubsub"
	"cometrelay/internal/route"
	"cometrelay/internal/schema"
	"cometrelay/internal/service"
	"cometrelay/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Dependencies struct {
	DB          *db.Pool
	Bus         *pubsub.Bus
	Hub         *ws.Hub
	Log         *zap.Logger
	Routes      *route.Table
	Validator   *schema.Validator
	Submissions *service.SubmissionService
	JobClient   service.JobClient
	JWTSecret   string
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(d.Log))

	// Inbound form-submission trigger. No operator auth; the trigger is an
	// automated callback.
	r.Post("/hooks/form", d.formWebhook)

	// Operator endpoints
	r.Group(func(r chi.Router) {
		jwtConfig := auth.NewJWTConfig(d.JWTSecret)
		r.Use(jwtConfig.Middleware)

		r.Get("/routes", d.listRoutes)
		r.Get("/submissions", d.listSubmissions)
		r.Get("/submissions/{id}", d.getSubmission)
		r.Post("/submissions/{id}/replay", d.replaySubmission)
	})

	// WebSocket endpoint
	r.Get("/ws", d.wsHandler)

	return r
}
