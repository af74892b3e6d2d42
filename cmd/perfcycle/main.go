package main

import (
	"context"
	"errors"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	api "github.com/perfcycle/perfcycle/internal/api/http"
	"github.com/perfcycle/perfcycle/internal/audit"
	"github.com/perfcycle/perfcycle/internal/auth"
	authmw "github.com/perfcycle/perfcycle/internal/auth/middleware"
	"github.com/perfcycle/perfcycle/internal/campaign"
	"github.com/perfcycle/perfcycle/internal/config"
	"github.com/perfcycle/perfcycle/internal/db"
	"github.com/perfcycle/perfcycle/internal/notify"
	"github.com/perfcycle/perfcycle/internal/rbac"
	"github.com/perfcycle/perfcycle/internal/scheduler"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	store := campaign.NewSQLStore(dbh)

	// --- Notifications ---
	queue := notify.NewSQLQueue(dbh)
	var mailer notify.Mailer = &notify.LogMailer{Log: log}
	if cfg.MailEnabled {
		var a smtp.Auth
		if cfg.SMTPUser != "" {
			host := cfg.SMTPAddr
			if i := strings.IndexByte(host, ':'); i >= 0 {
				host = host[:i]
			}
			a = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, host)
		}
		mailer = &notify.SMTPMailer{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom, Auth: a}
	}
	dispatcher := notify.NewDispatcher(queue, mailer, log)

	// --- Services ---
	aggregator := campaign.NewAggregator(store, log)
	admins := campaign.NewAdministrations(store, queue, aggregator, log)
	admins.BaseURL = strings.TrimRight(cfg.PublicURL, "/")
	generator := campaign.NewGenerator(store, log)
	submission := campaign.NewSubmission(store, queue, aggregator, log)

	// --- Auth ---
	authSvc := authmw.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Login surfaces
	r.Get("/auth/google/login", auth.GoogleLoginHandler(cfg))
	r.Get("/auth/google/callback", auth.GoogleCallbackHandler(authSvc, dbh, cfg))
	r.Post("/auth/external/login", auth.ExternalLoginHandler(authSvc, dbh))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))
		pr.Use(authmw.AttachRoleFromDB(dbh, true))

		// Evaluator flow
		pr.With(rbac.Require("evaluation:view-own")).
			Get("/user/evaluations", api.ListMyEvaluationsHandler(store))
		pr.With(rbac.Require("evaluation:view-own")).
			Get("/user/evaluations/{evaluationID}", api.GetEvaluationHandler(store))
		pr.With(rbac.Require("evaluation:answer")).
			Post("/user/evaluations/{evaluationID}/answers", api.SaveAnswerHandler(submission))
		pr.With(rbac.Require("evaluation:answer")).
			Post("/user/evaluations/{evaluationID}/comment", api.SaveCommentHandler(submission))
		pr.With(rbac.Require("evaluation:submit")).
			Post("/user/evaluations/{evaluationID}/submit", api.SubmitEvaluationHandler(submission))
		pr.With(rbac.Require("evaluation:request-removal")).
			Post("/user/evaluations/{evaluationID}/request-removal", api.RequestRemovalHandler(submission))
		pr.With(rbac.Require("result:view-own")).
			Get("/user/evaluation-administrations/{adminID}/result", api.MyResultHandler(store, admins))

		// Admin flow: RBAC-gated and audited
		auditRepo := audit.NewRepo(dbh)
		pr.With(rbac.Require("administration:manage"), audit.Middleware(auditRepo, log)).Route("/admin", func(ar chi.Router) {
			ar.Get("/evaluation-administrations", api.ListAdministrationsHandler(admins))
			ar.Post("/evaluation-administrations", api.CreateAdministrationHandler(admins))
			ar.Get("/evaluation-administrations/{adminID}", api.GetAdministrationHandler(admins))
			ar.Put("/evaluation-administrations/{adminID}", api.UpdateAdministrationHandler(admins))
			ar.Delete("/evaluation-administrations/{adminID}", api.DeleteAdministrationHandler(admins))

			ar.Post("/evaluation-administrations/{adminID}/evaluees", api.AddEvalueesHandler(generator))
			ar.Get("/evaluation-administrations/{adminID}/generate-status", api.GenerateStatusHandler(admins))
			ar.Post("/evaluation-administrations/{adminID}/generate", api.GenerateHandler(admins))
			ar.Post("/evaluation-administrations/{adminID}/cancel", api.CancelAdministrationHandler(admins))
			ar.Post("/evaluation-administrations/{adminID}/close", api.CloseAdministrationHandler(admins))
			ar.Post("/evaluation-administrations/{adminID}/reopen", api.ReopenAdministrationHandler(admins))
			ar.Post("/evaluation-administrations/{adminID}/publish", api.PublishAdministrationHandler(admins))

			ar.Get("/evaluation-administrations/{adminID}/results", api.ListResultsHandler(store))
			ar.Get("/evaluation-results/{resultID}", api.GetResultHandler(store))
			ar.Patch("/evaluation-results/{resultID}", api.SetResultStatusHandler(admins))
			ar.Delete("/evaluation-results/{resultID}", api.DeleteResultHandler(admins))
			ar.Get("/evaluation-results/{resultID}/evaluations", api.ListResultEvaluationsHandler(store))

			ar.Patch("/evaluations/{evaluationID}", api.SetEvaluationInclusionHandler(admins))
			ar.Post("/evaluations/{evaluationID}/approve-removal", api.ApproveRemovalHandler(submission))
			ar.Post("/evaluations/{evaluationID}/decline-removal", api.DeclineRemovalHandler(submission))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	// --- Scheduler ---
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &scheduler.Runner{
		Admins:        admins,
		Dispatcher:    dispatcher,
		Log:           log,
		AdvanceEvery:  cfg.AdvanceInterval,
		DispatchEvery: cfg.DispatchInterval,
	}
	go runner.Run(runCtx)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-runCtx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shCancel()
		_ = srv.Shutdown(shCtx)
	}()

	log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBDriver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("serve", zap.Error(err))
	}
}
