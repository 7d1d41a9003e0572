// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/warden/internal/auth"
	pgauth "github.com/holomush/warden/internal/auth/postgres"
	"github.com/holomush/warden/internal/observability"
	"github.com/holomush/warden/internal/store"
)

// testEnv holds all the resources needed for integration tests.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	pool      *pgxpool.Pool
	users     *pgauth.UserRepository
	sessions  *pgauth.SessionRepository
}

// setupTestEnv starts PostgreSQL, applies migrations and opens a pool.
func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("warden_test"),
		postgres.WithUsername("warden"),
		postgres.WithPassword("warden"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		env.cleanup()
		return nil, err
	}
	_ = migrator.Close()

	env.pool, err = store.Connect(ctx, connStr, store.ConnectOptions{})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.users = pgauth.NewUserRepository(env.pool)
	env.sessions = pgauth.NewSessionRepository(env.pool)
	return env, nil
}

func (e *testEnv) cleanup() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

var _ = Describe("Authentication against PostgreSQL", Ordered, func() {
	var (
		env    *testEnv
		hasher auth.PasswordHasher
	)

	BeforeAll(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
		hasher = auth.NewArgon2idHasher()
	})

	AfterAll(func() {
		if env != nil {
			env.cleanup()
		}
	})

	Describe("Service", func() {
		var svc *auth.Service

		BeforeAll(func() {
			var err error
			svc, err = auth.NewService(env.users, hasher)
			Expect(err).NotTo(HaveOccurred())
		})

		It("registers a user and rejects a duplicate email", func() {
			user, err := svc.RegisterUser(env.ctx, "ann@example.com", "secret")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Email).To(Equal("ann@example.com"))
			Expect(user.HashedPassword).NotTo(Equal("secret"))

			_, err = svc.RegisterUser(env.ctx, "ann@example.com", "other")
			Expect(err).To(MatchError(auth.ErrAlreadyExists))
		})

		It("checks passwords", func() {
			Expect(svc.ValidLogin(env.ctx, "ann@example.com", "secret")).To(BeTrue())
			Expect(svc.ValidLogin(env.ctx, "ann@example.com", "wrong")).To(BeFalse())
			Expect(svc.ValidLogin(env.ctx, "nobody@example.com", "secret")).To(BeFalse())
		})

		It("creates, resolves and destroys an account session", func() {
			sessionID, err := svc.CreateSession(env.ctx, "ann@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(sessionID).NotTo(BeEmpty())

			user, err := svc.GetUserFromSessionID(env.ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(user).NotTo(BeNil())
			Expect(user.Email).To(Equal("ann@example.com"))

			Expect(svc.DestroySession(env.ctx, user.ID)).To(Succeed())

			user, err = svc.GetUserFromSessionID(env.ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(user).To(BeNil())
		})

		It("replaces an earlier session on a new login", func() {
			first, err := svc.CreateSession(env.ctx, "ann@example.com")
			Expect(err).NotTo(HaveOccurred())
			second, err := svc.CreateSession(env.ctx, "ann@example.com")
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.GetUserFromSessionID(env.ctx, first)).To(BeNil())
			Expect(svc.GetUserFromSessionID(env.ctx, second)).NotTo(BeNil())
		})

		It("resets a password once per token", func() {
			token, err := svc.GetResetPasswordToken(env.ctx, "ann@example.com")
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.UpdatePassword(env.ctx, token, "changed")).To(Succeed())
			Expect(svc.ValidLogin(env.ctx, "ann@example.com", "changed")).To(BeTrue())
			Expect(svc.ValidLogin(env.ctx, "ann@example.com", "secret")).To(BeFalse())

			err = svc.UpdatePassword(env.ctx, token, "again")
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("refuses a reset token for an unknown email", func() {
			_, err := svc.GetResetPasswordToken(env.ctx, "nobody@example.com")
			Expect(err).To(MatchError(auth.ErrNoSuchUser))
		})
	})

	Describe("session_db_auth strategy", func() {
		var strategy *auth.SessionAuth

		BeforeAll(func() {
			_, err := env.users.AddUser(env.ctx, mustUser(hasher, "bea@example.com", "pw"))
			Expect(err).NotTo(HaveOccurred())

			strategy, err = auth.NewPersistentSessionAuth(env.users, hasher, env.sessions, auth.SessionConfig{
				CookieName: "sid",
				TTL:        time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("logs in and resolves the session from a second strategy instance", func() {
			_, sessionID, err := strategy.Login(env.ctx, "bea@example.com", "pw")
			Expect(err).NotTo(HaveOccurred())

			other, err := auth.NewPersistentSessionAuth(env.users, hasher, env.sessions, auth.SessionConfig{
				CookieName: "sid",
				TTL:        time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())

			req := auth.StaticRequest{Cookies: map[string]string{"sid": sessionID}}
			user, err := other.CurrentUser(env.ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(user).NotTo(BeNil())
			Expect(user.Email).To(Equal("bea@example.com"))

			Expect(other.DestroySession(env.ctx, req)).To(BeTrue())
			Expect(strategy.CurrentUser(env.ctx, req)).To(BeNil())
		})

		It("treats an expired session as absent", func() {
			now := time.Now()
			clock := func() time.Time { return now }
			short, err := auth.NewPersistentSessionAuth(env.users, hasher, env.sessions, auth.SessionConfig{
				CookieName: "sid",
				TTL:        time.Minute,
				Now:        clock,
			})
			Expect(err).NotTo(HaveOccurred())

			_, sessionID, err := short.Login(env.ctx, "bea@example.com", "pw")
			Expect(err).NotTo(HaveOccurred())

			now = now.Add(2 * time.Minute)
			req := auth.StaticRequest{Cookies: map[string]string{"sid": sessionID}}
			Expect(short.CurrentUser(env.ctx, req)).To(BeNil())
			Expect(short.DestroySession(env.ctx, req)).To(BeFalse())
		})
	})

	Describe("auth check endpoint", func() {
		var server *observability.Server

		BeforeAll(func() {
			_, err := env.users.AddUser(env.ctx, mustUser(hasher, "cy@example.com", "pw"))
			Expect(err).NotTo(HaveOccurred())

			basic, err := auth.NewBasicAuth(env.users, hasher, nil)
			Expect(err).NotTo(HaveOccurred())
			excluded, err := auth.CompileExcludedPaths([]string{"/public/*"})
			Expect(err).NotTo(HaveOccurred())

			server = observability.NewServer("127.0.0.1:0", func() bool {
				return env.pool.Ping(env.ctx) == nil
			})
			server.Handle("/auth/check", observability.NewCheckHandler(basic, auth.KindBasic, excluded, server.Metrics(), nil))
			_, err = server.Start()
			Expect(err).NotTo(HaveOccurred())
		})

		AfterAll(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(server.Stop(ctx)).To(Succeed())
		})

		status := func(path, email, password string) int {
			req, err := http.NewRequest(http.MethodGet, "http://"+server.Addr()+"/auth/check", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set(observability.OriginalURIHeader, path)
			if email != "" {
				req.SetBasicAuth(email, password)
			}
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return resp.StatusCode
		}

		It("admits valid Basic credentials", func() {
			Expect(status("/private", "cy@example.com", "pw")).To(Equal(http.StatusOK))
		})

		It("denies a wrong password", func() {
			Expect(status("/private", "cy@example.com", "nope")).To(Equal(http.StatusUnauthorized))
		})

		It("skips excluded paths", func() {
			Expect(status("/public/logo.png", "", "")).To(Equal(http.StatusOK))
		})

		It("reports readiness from the database", func() {
			resp, err := http.Get("http://" + server.Addr() + "/healthz/readiness")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})

func mustUser(hasher auth.PasswordHasher, email, password string) *auth.User {
	hashed, err := hasher.Hash(password)
	Expect(err).NotTo(HaveOccurred())
	user, err := auth.NewUser(email, hashed)
	Expect(err).NotTo(HaveOccurred())
	return user
}
