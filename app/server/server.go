package server

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"geodoc/app/api"
	"geodoc/app/middleware"
	"geodoc/app/ops"
	"geodoc/app/session"
	"geodoc/app/upload"
	"geodoc/backend"
	"geodoc/store"
	"geodoc/types"
	"geodoc/watcher"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    32 << 20, // per-flow ceilings are enforced by the coordinator
}

type Server struct {
	listenAddr string
	logger     *zap.Logger
	app        *fiber.App
	cancel     context.CancelFunc
}

func NewServer(addr string, logger *zap.Logger) *Server {
	return &Server{
		listenAddr: addr,
		logger:     logger,
	}
}

func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.app != nil {
		s.app.Shutdown()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	statePath := os.Getenv("STATE_FILE")
	if statePath == "" {
		statePath = filepath.Join("data", "session.json")
	}
	timeout := 30 * time.Second
	if v := os.Getenv("BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}

	var (
		storer      = store.NewFileStore(statePath)
		client      = backend.New(os.Getenv("BACKEND_URL"), timeout)
		sess        = session.NewManager(storer, s.logger)
		service     = ops.New(sess, client, s.logger)
		coordinator = upload.NewCoordinator(client, s.logger)

		app                 = fiber.New(config)
		checkHandler        = api.NewCheckHandler()
		authHandler         = api.NewAuthHandler(client, sess)
		projectHandler      = api.NewProjectHandler(client)
		conversationHandler = api.NewConversationHandler(service, sess)
		uploadHandler       = api.NewUploadHandler(coordinator, service)
		coverPageHandler    = api.NewCoverPageHandler(client)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)
	s.app = app

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if os.Getenv("WATCH_SOURCE_DIR") != "" {
		activeDocument := func() (string, bool) {
			return sess.DocumentID(types.DocumentKey(os.Getenv("WATCH_PROJECT_ID"), types.Topic(os.Getenv("WATCH_TOPIC"))))
		}
		go watcher.New(coordinator, activeDocument, s.logger).Run(ctx)
	}

	app.Use(middleware.PlugAuth("/api/v1", client))

	check.Get("/healthy", checkHandler.HandleHealthy)

	app.Post("/auth/login", authHandler.HandleLogin)
	app.Post("/auth/register", authHandler.HandleRegister)
	app.Post("/auth/logout", authHandler.HandleLogout)

	apiv1.Get("/projects", projectHandler.HandleList)
	apiv1.Post("/projects", projectHandler.HandleCreate)
	apiv1.Put("/projects/:projectID", projectHandler.HandleUpdate)
	apiv1.Delete("/projects/:projectID", projectHandler.HandleDelete)

	apiv1.Get("/structure/:topic", conversationHandler.HandleStructure)
	apiv1.Post("/conversation/start", conversationHandler.HandleStart)
	apiv1.Post("/conversation/reply", conversationHandler.HandleReply)
	apiv1.Get("/conversation/:documentID/messages", conversationHandler.HandleMessages)
	apiv1.Post("/conversation/approve", conversationHandler.HandleApprove)
	apiv1.Get("/documents/:documentID/pdf", conversationHandler.HandlePdfPreview)
	apiv1.Get("/documents/:documentID/download", conversationHandler.HandleDownload)
	apiv1.Post("/session/reset", conversationHandler.HandleReset)

	apiv1.Post("/upload/:documentID/file", uploadHandler.HandleUpload)
	apiv1.Post("/upload/:documentID/message-file", uploadHandler.HandleUploadWithMessage)
	apiv1.Get("/upload/:documentID/files", uploadHandler.HandleList)
	apiv1.Get("/upload/files/status/:fileID", uploadHandler.HandleStatus)
	apiv1.Delete("/upload/:documentID/files/:fileID", uploadHandler.HandleDelete)

	apiv1.Get("/cover-page/:documentID/structure", coverPageHandler.HandleStructure)
	apiv1.Get("/cover-page/:documentID/data", coverPageHandler.HandleData)
	apiv1.Put("/cover-page/:documentID/data", coverPageHandler.HandleSaveData)

	if err := app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", zap.Error(err))
	}
}
