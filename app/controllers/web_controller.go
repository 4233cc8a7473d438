package controllers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aoisuzu/Gatekeeper/app/auditlog"
	"github.com/aoisuzu/Gatekeeper/app/database"
	"github.com/aoisuzu/Gatekeeper/app/grant"
	"github.com/aoisuzu/Gatekeeper/app/identity"
	"github.com/aoisuzu/Gatekeeper/app/models"
	"github.com/aoisuzu/Gatekeeper/app/policy"
)

// Fixed result-page messages.
const (
	msgSuccess     = "認証に成功しました。"
	msgInvalidLink = "無効な認証リンクです。"
	msgExpiredLink = "この認証リンクは無効か、期限切れです。"
	msgFailure     = "認証に失敗しました。時間をおいて再度お試しください。"
)

// Web serves the external-link side of the flow: the redirect into the
// identity provider and the callback that runs the decision pipeline.
type Web struct {
	store      database.Store
	provider   identity.Provider
	engine     *policy.Engine
	executor   *grant.Executor
	recorder   *auditlog.Recorder
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewWeb(store database.Store, provider identity.Provider, engine *policy.Engine, executor *grant.Executor, recorder *auditlog.Recorder, sessionTTL time.Duration, logger *slog.Logger) *Web {
	return &Web{
		store:      store,
		provider:   provider,
		engine:     engine,
		executor:   executor,
		recorder:   recorder,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

func (w *Web) RegisterRoutes(app *fiber.App) {
	app.Get("/auth/discord", w.HandleAuthStart)
	app.Get("/auth/discord/callback", w.HandleAuthCallback)
}

// HandleAuthStart forwards the user to the identity provider, carrying the
// verify token as OAuth state.
func (w *Web) HandleAuthStart(c *fiber.Ctx) error {
	token := c.Query("token")
	if err := uuid.Validate(token); err != nil {
		return renderResult(c, fiber.StatusBadRequest, false, msgInvalidLink)
	}
	return c.Redirect(w.provider.AuthCodeURL(token), fiber.StatusTemporaryRedirect)
}

// HandleAuthCallback resolves one verification attempt end to end: consume
// the single-use session, link the identity, evaluate, apply, record.
func (w *Web) HandleAuthCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || uuid.Validate(state) != nil {
		return renderResult(c, fiber.StatusBadRequest, false, msgInvalidLink)
	}

	ctx := c.UserContext()

	// Consuming deletes the session, so a replayed callback lands here.
	session, err := w.store.ConsumeSession(ctx, state)
	if errors.Is(err, database.ErrSessionNotFound) {
		return renderResult(c, fiber.StatusNotFound, false, msgExpiredLink)
	}
	if err != nil {
		w.logger.Error("failed to consume verify session", slog.Any("err", err))
		return renderResult(c, fiber.StatusInternalServerError, false, msgFailure)
	}

	now := time.Now().UTC()
	if session.Expired(w.sessionTTL, now) {
		return renderResult(c, fiber.StatusBadRequest, false, msgExpiredLink)
	}

	linked, err := w.provider.Exchange(ctx, code)
	if err != nil {
		w.logger.Error("account link failed", slog.Any("err", err))
		return renderResult(c, fiber.StatusBadGateway, false, msgFailure)
	}

	if linked.UserID != session.UserID {
		w.logger.Warn("linked identity does not match session",
			slog.String("session_user", session.UserID),
			slog.String("linked_user", linked.UserID))
		return renderResult(c, fiber.StatusForbidden, false, msgInvalidLink)
	}

	reqCtx := models.RequestContext{SourceIP: c.IP(), At: now}

	decision, rep, err := w.engine.Evaluate(ctx, linked, reqCtx)
	if err != nil {
		// Fail closed: a reputation outage is operator-visible and the
		// user just sees a retryable failure, never a grant.
		w.logger.Error("reputation lookup failed",
			slog.String("user_id", linked.UserID),
			slog.Any("err", err))
		return renderResult(c, fiber.StatusServiceUnavailable, false, msgFailure)
	}

	member := models.MemberRef{GuildID: session.GuildID, UserID: linked.UserID}
	rec := models.VerifyRecord{
		Token:       session.Token,
		UserID:      linked.UserID,
		GuildID:     session.GuildID,
		Email:       linked.Email,
		IP:          reqCtx.SourceIP,
		CountryCode: rep.CountryCode,
		ProxyOrVPN:  rep.ProxyOrVPN,
		Passed:      decision.Allowed,
		Reason:      string(decision.Reason),
		At:          now,
	}

	if err := w.executor.Apply(ctx, decision, member); err != nil {
		// Misconfiguration (e.g. missing role), not a policy deny.
		w.logger.Error("failed to apply decision",
			slog.String("user_id", linked.UserID),
			slog.Any("err", err))
		rec.Passed = false
		rec.Reason = "grant_failed"
		w.recorder.Record(ctx, rec)
		return renderResult(c, fiber.StatusInternalServerError, false, msgFailure)
	}

	w.recorder.Record(ctx, rec)

	if !decision.Allowed {
		return renderResult(c, fiber.StatusOK, false, grant.DenyMessage(decision.Reason))
	}
	return renderResult(c, fiber.StatusOK, true, msgSuccess)
}

func renderResult(c *fiber.Ctx, status int, success bool, message string) error {
	title := "Verification Failed"
	if success {
		title = "Verification Success"
	}
	return c.Status(status).Render("result", fiber.Map{
		"Title":   title,
		"Success": success,
		"Message": message,
	})
}
