package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/teelink/clubauth/internal/app/policy"
	policyrepo "github.com/teelink/clubauth/internal/app/policy/repo/gorm"
	policyhttp "github.com/teelink/clubauth/internal/app/policy/transport/http"
	policyusecase "github.com/teelink/clubauth/internal/app/policy/usecase"
	"github.com/teelink/clubauth/internal/app/risk"
	"github.com/teelink/clubauth/internal/app/role"
	rolerepo "github.com/teelink/clubauth/internal/app/role/repo/gorm"
	rolehttp "github.com/teelink/clubauth/internal/app/role/transport/http"
	roleusecase "github.com/teelink/clubauth/internal/app/role/usecase"
	"github.com/teelink/clubauth/internal/app/session"
	sessionrepo "github.com/teelink/clubauth/internal/app/session/repo/gorm"
	sessionhttp "github.com/teelink/clubauth/internal/app/session/transport/http"
	sessionusecase "github.com/teelink/clubauth/internal/app/session/usecase"
	"github.com/teelink/clubauth/internal/app/token"
	tokenrepo "github.com/teelink/clubauth/internal/app/token/repo/gorm"
	tokenhttp "github.com/teelink/clubauth/internal/app/token/transport/http"
	tokenusecase "github.com/teelink/clubauth/internal/app/token/usecase"
	"github.com/teelink/clubauth/internal/infrastructure/events"
	eventsrepo "github.com/teelink/clubauth/internal/infrastructure/events/repo/gorm"
	"github.com/teelink/clubauth/internal/infrastructure/httpx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
	"github.com/teelink/clubauth/internal/infrastructure/obs"
	"github.com/teelink/clubauth/internal/infrastructure/secure"
	"github.com/teelink/clubauth/internal/infrastructure/system"
	"github.com/teelink/clubauth/internal/infrastructure/tx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := loadConfig()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(cfg.LogLevel.zeroLog())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	err := godotenv.Overload(".env")
	if err != nil {
		log.Debug().Err(err).Msg("failed to load .env file, using environment variables")
	}

	password := os.Getenv("DB_PASSWORD")
	dsn := fmt.Sprintf("%s password=%s", cfg.DatabaseDSN, password)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		panic(err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	jwtCodec := secure.NewTokenCodec([]byte(jwtSecret))

	idGen := &system.UUIDv7Generator{}
	timeGen := &system.TimeGenerator{}
	tokenHasher := secure.NewTokenHasher()

	obs.Init()
	bus := events.NewBus()

	policyStore := policy.NewStore(policyrepo.NewRepository(db))
	riskEval := risk.NewEvaluator(getRiskConfigs())

	sessionRepo := sessionrepo.NewRepository(db)
	revocationRepo := tokenrepo.NewRepository(db)

	tokenCore := token.NewCore(
		session.NewTokenBackend(sessionRepo),
		jwtCodec, revocationRepo, tokenHasher, idGen, timeGen,
		getTokenConfigs(),
	)

	sessionCfg := getSessionConfigs()
	sessionCore := session.NewCore(
		sessionRepo, tokenCore, policyStore, riskEval, bus,
		session.Generators{ID: idGen, Time: timeGen},
		sessionCfg.Config,
	)

	roleRepo := rolerepo.NewRepository(tx.New(db))
	roleCore := role.NewCore(
		roleRepo,
		role.Generators{ID: idGen, Time: timeGen},
		role.NopGrantSource{}, role.NopGrantSource{},
		role.DefaultSkillTiers(), role.DefaultAchievementGrants(),
	)

	roleService := roleusecase.NewService(roleCore)
	roleHandler := rolehttp.NewHandler(roleService)

	sessionService := sessionusecase.NewService(sessionCore, roleCore)
	sessionHandler := sessionhttp.NewHandler(sessionService)

	tokenService := tokenusecase.NewService(tokenCore)
	tokenHandler := tokenhttp.NewHandler(tokenService)

	policyService := policyusecase.NewService(policyStore, roleCore)
	policyHandler := policyhttp.NewHandler(policyService)

	// --- set up chi router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.Logger)
	r.Use(obs.Instrument)
	r.Use(httpx.MaxBodyBytes(cfg.MaxBodySize))

	// with auth
	r.Group(func(r chi.Router) {
		r.Use(tokenhttp.AuthMiddleware(tokenCore))

		// --- session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.ListUserSessions)          // GET    /sessions?user_id={user_id}
			r.Delete("/", sessionHandler.TerminateAllUserSessions) // DELETE /sessions?user_id={user_id}&exclude_device={device_id}
			r.Post("/activity", sessionHandler.RecordActivity)   // POST   /sessions/activity

			r.Route(fmt.Sprintf("/{%s}", sessionhttp.URLParamSessionID), func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)              // GET    /sessions/{session_id}
				r.Delete("/", sessionHandler.TerminateSession)     // DELETE /sessions/{session_id}
				r.Post("/validate", sessionHandler.ValidateSession) // POST  /sessions/{session_id}/validate
				r.Post("/refresh", sessionHandler.RefreshSession)  // POST   /sessions/{session_id}/refresh
				r.Post("/quarantine", sessionHandler.Quarantine)   // POST   /sessions/{session_id}/quarantine
			})
		})

		r.Delete(fmt.Sprintf("/tenants/{%s}/sessions", sessionhttp.URLParamTenantID),
			sessionHandler.TerminateAllTenantSessions) // DELETE /tenants/{tenant_id}/sessions

		// --- role routes
		r.Route("/roles", func(r chi.Router) {
			r.Post("/", roleHandler.CreateRole) // POST /roles

			r.Route(fmt.Sprintf("/{%s}", rolehttp.URLParamRoleID), func(r chi.Router) {
				r.Get("/", roleHandler.GetRole)       // GET    /roles/{role_id}
				r.Delete("/", roleHandler.DeleteRole) // DELETE /roles/{role_id}

				r.Post("/assignments", roleHandler.AssignRole)     // POST   /roles/{role_id}/assignments
				r.Delete("/assignments", roleHandler.UnassignRole) // DELETE /roles/{role_id}/assignments
			})
		})
		r.Get(fmt.Sprintf("/users/{%s}/permissions", rolehttp.URLParamUserID),
			roleHandler.GetUserPermissions) // GET /users/{user_id}/permissions
		r.Post("/permissions/check", roleHandler.CheckPermission) // POST /permissions/check

		// --- policy routes
		r.Route(fmt.Sprintf("/policies/{%s}", policyhttp.URLParamTenantID), func(r chi.Router) {
			r.Get("/", policyHandler.GetPolicy) // GET /policies/{tenant_id}
			r.Put("/", policyHandler.SetPolicy) // PUT /policies/{tenant_id}
		})

		r.Post("/tokens/rotate", tokenHandler.Rotate) // POST /tokens/rotate
	})

	// without auth
	r.Group(func(r chi.Router) {
		r.Post("/sessions", sessionHandler.CreateSession) // POST /sessions
		r.Post("/tokens/verify", tokenHandler.Verify)     // POST /tokens/verify
		r.Post("/tokens/refresh", tokenHandler.Refresh)   // POST /tokens/refresh
		r.Post("/tokens/revoke", tokenHandler.Revoke)     // POST /tokens/revoke
	})

	r.Method(http.MethodGet, "/metrics", obs.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	bgCtx := log.Logger.WithContext(ctx)

	// Subscriptions are taken before the goroutines start, so events from the
	// first requests cannot outrun the sinks.
	go events.RunAuditSink(bus.Subscribe(bgCtx), log.Logger)
	go events.RunStoreSink(bgCtx, bus.Subscribe(bgCtx), eventsrepo.NewRepository(db), log.Logger)
	go events.RunMetricsSink(bus.Subscribe(bgCtx))

	reaper := session.NewReaper(sessionCore, revocationRepo,
		time.Duration(sessionCfg.ReaperIntervalMinutes)*time.Minute)
	go reaper.Run(bgCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Msg(fmt.Sprintf("starting server on :%s", cfg.Port))
	if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
