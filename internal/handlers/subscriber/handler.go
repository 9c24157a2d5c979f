package subscriber

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/metrics"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/models"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/subscribers"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/sitecfg"
)

const timeoutDuration = 10 * time.Second

type subscriberService interface {
	Subscribe(ctx context.Context, data models.SignupData) (subscribers.SubscribeResult, error)
	Validate(ctx context.Context, token string) (subscribers.ValidationOutcome, error)
	UpdatePreferences(ctx context.Context, data models.PreferencesData) error
	Health(ctx context.Context) error
}

type siteProvider interface {
	Snapshot() sitecfg.Site
}

type Handler struct {
	Service subscriberService
	SiteCfg siteProvider

	log zerolog.Logger
	m   *metrics.Metrics
}

func NewHandler(
	svc subscriberService,
	site siteProvider,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Handler {
	logger = logger.With().Str("component", "SubscriberHandler").Logger()
	return &Handler{Service: svc, SiteCfg: site, log: logger, m: m}
}

// Subscribe
// @Summary Submit a newsletter signup
// @Description Registers an email for the newsletter and sends a validation link. Re-submitting an unvalidated email reissues the link.
// @Tags subscription
// @Accept json
// @Accept application/x-www-form-urlencoded
// @Param email formData string true "Email address to subscribe"
// @Param preferences formData []string false "Content categories to receive" collectionFormat(multi)
// @Success 200
// @Failure 400
// @Failure 500
// @Router /subscribe [post]
func (h *Handler) Subscribe(c *gin.Context) {
	var data models.SignupData
	if err := c.ShouldBind(&data); err != nil {
		h.log.Warn().Err(err).Msg("failed to bind signup data")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid email address"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	res, err := h.Service.Subscribe(ctx, data)
	if err != nil {
		switch {
		case errors.Is(err, subscribers.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid email address"})
		case errors.Is(err, subscribers.ErrUnknownPreference):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown content preference"})
		default:
			h.log.Error().Err(err).Msg("failed to subscribe")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	h.m.SignupsTotal.WithLabelValues(string(res.Outcome)).Inc()

	switch res.Outcome {
	case subscribers.OutcomeCreated:
		if !res.MailSent {
			c.JSON(http.StatusOK, gin.H{
				"message": "Subscription saved, but the validation email could not be sent. " +
					"Submit your email again to retry.",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Please check your email and click the validation link to complete your subscription",
		})
	case subscribers.OutcomeResent:
		if !res.MailSent {
			c.JSON(http.StatusOK, gin.H{
				"message": "Subscription saved, but the validation email could not be sent. " +
					"Submit your email again to retry.",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "A new validation email has been sent to your inbox"})
	case subscribers.OutcomeAlreadySubscribed:
		c.JSON(http.StatusOK, gin.H{"message": "This email is already subscribed and validated"})
	}
}

// Validate
// @Summary Validate an email address
// @Description Consumes the single-use token from the validation link.
// @Tags subscription
// @Param token path string true "Validation token"
// @Success 200
// @Failure 404
// @Failure 410
// @Router /validate/{token} [get]
func (h *Handler) Validate(c *gin.Context) {
	token := c.Param("token")

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	outcome, err := h.Service.Validate(ctx, token)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to validate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.m.ValidationsTotal.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case subscribers.ValidationOK:
		c.JSON(http.StatusOK, gin.H{
			"message": "Thank you! Your email has been validated and you're now subscribed to our newsletter.",
		})
	case subscribers.ValidationExpired:
		c.JSON(http.StatusGone, gin.H{
			"error": "Validation link expired. Please subscribe again to receive a new one.",
		})
	case subscribers.ValidationNotFound:
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Invalid or expired validation link. Please try subscribing again.",
		})
	}
}

// UpdatePreferences
// @Summary Update content preferences
// @Description Replaces the preference set of a validated subscriber.
// @Tags subscription
// @Accept json
// @Accept application/x-www-form-urlencoded
// @Param email formData string true "Subscriber email"
// @Param preferences formData []string false "Content categories to receive" collectionFormat(multi)
// @Success 200
// @Failure 400
// @Failure 403
// @Failure 404
// @Router /preferences [post]
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var data models.PreferencesData
	if err := c.ShouldBind(&data); err != nil {
		h.log.Warn().Err(err).Msg("failed to bind preferences data")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid email address"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	err := h.Service.UpdatePreferences(ctx, data)
	switch {
	case err == nil:
		h.m.PreferenceUpdatesTotal.Inc()
		c.JSON(http.StatusOK, gin.H{"message": "Preferences updated successfully"})
	case errors.Is(err, subscribers.ErrNotSubscribed):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
	case errors.Is(err, subscribers.ErrNotValidated):
		c.JSON(http.StatusForbidden, gin.H{"error": "Please validate your email before updating preferences"})
	case errors.Is(err, subscribers.ErrUnknownPreference):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown content preference"})
	default:
		h.log.Error().Err(err).Msg("failed to update preferences")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// Health
// @Summary Health check
// @Description Reports store reachability, no side effects.
// @Tags system
// @Success 200
// @Failure 503
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	if err := h.Service.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
}

// Site
// @Summary Signup page configuration
// @Description Returns the current branding strings and category list.
// @Tags system
// @Success 200
// @Router /site [get]
func (h *Handler) Site(c *gin.Context) {
	c.JSON(http.StatusOK, h.SiteCfg.Snapshot())
}
