package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/escalations"
	"github.com/yungbote/helpdesk-backend/internal/knowledge"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/ragcache"
	"github.com/yungbote/helpdesk-backend/internal/services"
	"github.com/yungbote/helpdesk-backend/internal/sessions"
)

type Services struct {
	Retriever    knowledge.Retriever
	Cache        ragcache.Cache
	Escalations  escalations.Store
	Sessions     *sessions.Store
	Classifier   services.Classifier
	Tickets      services.TicketService
	Conversation services.ConversationService
	Sync         services.SyncService

	// VoiceConversation handles phone calls. It is the shared pipeline
	// unless VOICE_SHARED_ESCALATIONS=false, in which case it runs against
	// an isolated escalation store.
	VoiceConversation services.ConversationService
}

func wireServices(log *logger.Logger, cfg Config, db *gorm.DB, clients Clients, repos Repos) Services {
	retriever := knowledge.NewRetriever(log, knowledge.DefaultBase())
	cache := ragcache.New(log, clients.Redis)
	store := escalations.NewStore(log, clients.Redis)
	sess := sessions.NewStore(log)

	classifier := services.NewClassifier(log)
	tickets := services.NewTicketService(log, db, repos.Ticket, repos.Department, classifier)
	ai := services.NewOpenAIClient(log)
	notifier := services.NewChannelNotifier(log, clients.Twilio, clients.SendGrid)

	conversation := services.NewConversationService(log, retriever, cache, store, sess, ai, tickets, classifier)

	voiceConversation := conversation
	if !cfg.VoiceSharedEscalations {
		voiceStore := escalations.NewStore(log, nil)
		voiceConversation = services.NewConversationService(log, retriever, cache, voiceStore, sess, ai, tickets, classifier)
	}

	sync := services.NewSyncService(log, store, tickets, sess, notifier)

	return Services{
		Retriever:         retriever,
		Cache:             cache,
		Escalations:       store,
		Sessions:          sess,
		Classifier:        classifier,
		Tickets:           tickets,
		Conversation:      conversation,
		Sync:              sync,
		VoiceConversation: voiceConversation,
	}
}
