package handlers

import (
	"net/http"

	settingsRepo "bloomdispatch/database/repository/settings"
	"bloomdispatch/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResponseHandler serves the accept/decline links sent to providers.
type ResponseHandler struct {
	Service  booking.ResponseService
	Settings settingsRepo.SettingsRepository
}

func NewResponseHandler(svc booking.ResponseService, settings settingsRepo.SettingsRepository) *ResponseHandler {
	return &ResponseHandler{Service: svc, Settings: settings}
}

// RespondHandler handles GET and POST /api/bookings/respond.
func (h *ResponseHandler) RespondHandler(c *gin.Context) {
	logger := getLogger(c)

	var req booking.ResponseRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderError(c, booking.NewValidationError("invalid request parameters"))
		return
	}
	if req.ProviderID == "" {
		req.ProviderID = firstNonEmpty(c.Query("provider"), c.PostForm("provider"))
	}

	ctx := c.Request.Context()
	timeouts := settingsRepo.LoadTimeoutSettings(ctx, h.Settings, logger)

	res, err := h.Service.Respond(ctx, req, timeouts)
	if err != nil {
		if booking.StatusOf(err) >= http.StatusInternalServerError {
			logger.Error("booking response failed",
				zap.String("booking", req.BookingReference),
				zap.String("provider", req.ProviderID),
				zap.Error(err))
		}
		h.renderError(c, err)
		return
	}

	page := TemplateResponseDone
	class := "ok"
	if res.Outcome.Idempotent() {
		page, class = TemplateResponseInfo, "info"
	}
	h.render(c, http.StatusOK, page, gin.H{
		"Title":     titleFor(res.Outcome),
		"Message":   res.Message,
		"Reference": res.Booking.Reference,
		"Class":     class,
		"Outcome":   string(res.Outcome),
		"Status":    string(res.Booking.Status),
	})
}

func (h *ResponseHandler) renderError(c *gin.Context, err error) {
	status := booking.StatusOf(err)
	code := booking.CodeDependency
	message := "Something went wrong while recording your response. Please try again later."
	if e, ok := booking.AsError(err); ok {
		code = e.Code
		if status < http.StatusInternalServerError {
			message = e.Message
		}
	}
	h.render(c, status, TemplateResponseError, gin.H{
		"Title":   errorTitle(code),
		"Message": message,
		"Class":   "err",
		"Error":   code,
	})
}

// render writes HTML by default and JSON when the client asks for it.
func (h *ResponseHandler) render(c *gin.Context, status int, page string, data gin.H) {
	switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEJSON:
		body := gin.H{"message": data["Message"]}
		for _, k := range []string{"Outcome", "Status", "Reference", "Error"} {
			if v, ok := data[k]; ok && v != "" {
				body[jsonKey(k)] = v
			}
		}
		c.JSON(status, body)
	default:
		c.HTML(status, page, data)
	}
}

func titleFor(o booking.Outcome) string {
	switch o {
	case booking.OutcomeConfirmed:
		return "Booking confirmed"
	case booking.OutcomeDeclined:
		return "Booking declined"
	case booking.OutcomeSeekingAlternate, booking.OutcomeDeclineRecorded:
		return "Response recorded"
	case booking.OutcomeLostRace, booking.OutcomeConfirmedByOther:
		return "Booking already taken"
	default:
		return "Already processed"
	}
}

func errorTitle(code string) string {
	switch code {
	case booking.CodeValidation:
		return "Invalid link"
	case booking.CodeForbidden:
		return "Not allowed"
	case booking.CodeNotFound:
		return "Not found"
	case booking.CodeConflict:
		return "Booking unavailable"
	default:
		return "Something went wrong"
	}
}

func jsonKey(k string) string {
	switch k {
	case "Outcome":
		return "outcome"
	case "Status":
		return "status"
	case "Reference":
		return "reference"
	default:
		return "error"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
