package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/ctxeco/backend/internal/ingest"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/classify"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/graph"
	"github.com/ctxeco/backend/pkg/search"
	"github.com/ctxeco/backend/pkg/store"
)

// App holds the shared dependencies handlers reach through the request
// context. Everything here is built once at startup.
type App struct {
	Store      store.Storage
	Queue      *amqp091.Channel
	Key        *keyfunc.Keyfunc
	S3         *s3.Client
	Search     *search.Engine
	Ingestor   *ingest.Ingestor
	Builder    *graph.Builder
	Classifier *classify.Classifier
	Auditor    *audit.Recorder

	MasterAPIKey   string
	MasterTenantID string
}

// AppContext wraps the echo context with the app dependencies and the
// caller resolved by AuthMiddleware. User is nil on unauthenticated
// routes.
type AppContext struct {
	echo.Context
	App  *App
	User *common.SecurityContext
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
