package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// handleWebhook accepts a Twilio WhatsApp message. Once the payload parses
// the gateway always gets 200; processing errors are only logged so Twilio
// does not redeliver.
func (s *Server) handleWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		s.badRequest(c, err)
		return
	}
	form := c.Request.PostForm

	if s.cfg.TwilioAuthToken != "" && s.cfg.PublicURL != "" {
		u := s.cfg.PublicURL + c.Request.URL.RequestURI()
		if !whatsapp.ValidSignature(s.cfg.TwilioAuthToken, u, form, c.GetHeader("X-Twilio-Signature")) {
			s.logger.Warn("Rejected webhook with bad signature")
			s.respondError(c, common.ErrUnauthorized)
			return
		}
	}

	in, err := whatsapp.ParseInbound(form)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	// The reply is sent over the REST API, so the work outlives a dropped
	// webhook connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.cfg.WebhookTimeout)
	defer cancel()

	if err := s.deps.Conversation.HandleInbound(ctx, in.From, in.Body); err != nil {
		level := s.logger.Error
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrValidation) {
			level = s.logger.Warn
		}
		level("Inbound message not handled", "message_sid", in.MessageSID, "error", err)
	}

	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(emptyTwiML))
}
