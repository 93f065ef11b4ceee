// Package api exposes the grading pipeline over HTTP.
package api

import (
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sawit-ai/go-grading/datastore"
	"github.com/sawit-ai/go-grading/inference"
)

// Runner is the inference surface the server drives. *inference.Pipeline
// satisfies it.
type Runner interface {
	Process(data []byte) (*inference.Result, error)
	Status() inference.ModelStatus
}

// Server routes HTTP requests to the pipeline and the datastore. The store
// may be nil, which disables auth and history persistence but keeps the
// inference endpoints live.
type Server struct {
	echo   *echo.Echo
	runner Runner
	store  *datastore.Store
}

// New builds the server and registers its routes.
func New(runner Runner, store *datastore.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, runner: runner, store: store}

	e.GET("/health", s.handleHealth)
	e.GET("/api/model/status", s.handleModelStatus)
	e.POST("/api/model/run", s.handleModelRun)
	e.POST("/api/auth/register", s.handleRegister)
	e.POST("/api/auth/login", s.handleLogin)
	e.GET("/api/history", s.handleHistory)

	return s
}

// Echo exposes the underlying router, used by tests to drive requests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start blocks serving on the given port.
func (s *Server) Start(port string) error {
	log.Printf("🚀 Grading API listening on :%s", port)
	return s.echo.Start(":" + port)
}
