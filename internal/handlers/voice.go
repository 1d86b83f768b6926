package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/clients/twilio"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/services"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

const voiceLanguage = "ru-RU"

// VoiceHandler serves the Twilio voice webhooks. It may run against a
// separate escalation store from the text channels, depending on
// configuration; the conversation service it holds decides that.
type VoiceHandler struct {
	log          *logger.Logger
	conversation services.ConversationService
}

func NewVoiceHandler(log *logger.Logger, conversation services.ConversationService) *VoiceHandler {
	return &VoiceHandler{
		log:          log.With("handler", "VoiceHandler"),
		conversation: conversation,
	}
}

// Incoming greets the caller and opens a speech gather.
func (h *VoiceHandler) Incoming(c *gin.Context) {
	resp := (&twilio.VoiceResponse{}).
		Say("Здравствуйте! Вы позвонили в службу поддержки.", voiceLanguage).
		GatherSpeech("/webhooks/twilio/voice/collect", voiceLanguage, "Опишите ваш вопрос после сигнала.")
	h.renderTwiML(c, resp)
}

// Collect receives the transcribed speech, runs it through the assistant and
// reads the answer back, then re-opens the gather for a follow-up.
func (h *VoiceHandler) Collect(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_form", err)
		return
	}
	call := twilio.InboundCall{
		CallSID:      c.Request.PostForm.Get("CallSid"),
		From:         c.Request.PostForm.Get("From"),
		To:           c.Request.PostForm.Get("To"),
		SpeechResult: strings.TrimSpace(c.Request.PostForm.Get("SpeechResult")),
	}
	if call.SpeechResult == "" {
		resp := (&twilio.VoiceResponse{}).
			Say("Я вас не расслышал.", voiceLanguage).
			GatherSpeech("/webhooks/twilio/voice/collect", voiceLanguage, "Повторите, пожалуйста, ваш вопрос.")
		h.renderTwiML(c, resp)
		return
	}

	result, err := h.conversation.Handle(c.Request.Context(), services.ConversationRequest{
		Message:  call.SpeechResult,
		Source:   types.TicketSourceVoice,
		Identity: call.From,
	})
	if err != nil {
		h.log.Error("voice message failed", "from", call.From, "error", err)
		resp := (&twilio.VoiceResponse{}).
			Say("Произошла ошибка. Попробуйте позвонить позже.", voiceLanguage).
			Hangup()
		h.renderTwiML(c, resp)
		return
	}

	resp := (&twilio.VoiceResponse{}).Say(result.Reply, voiceLanguage)
	if result.Escalated {
		resp.Say("Ваш номер обращения "+spellNumber(result.EscalationNumber)+". Оператор свяжется с вами.", voiceLanguage).
			Hangup()
	} else {
		resp.GatherSpeech("/webhooks/twilio/voice/collect", voiceLanguage, "Могу ли я помочь с чем-то ещё?")
	}
	h.renderTwiML(c, resp)
}

func (h *VoiceHandler) renderTwiML(c *gin.Context, resp *twilio.VoiceResponse) {
	body, err := resp.Render()
	if err != nil {
		h.log.Error("twiml render failed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(body))
}

// spellNumber spaces out a ticket number so text to speech reads it digit by
// digit.
func spellNumber(number string) string {
	return strings.Join(strings.Split(number, ""), " ")
}
