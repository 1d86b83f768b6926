package app

import (
	"os"
	"strings"

	"github.com/yungbote/helpdesk-backend/internal/clients/redis"
	"github.com/yungbote/helpdesk-backend/internal/clients/sendgrid"
	"github.com/yungbote/helpdesk-backend/internal/clients/twilio"
	"github.com/yungbote/helpdesk-backend/internal/logger"
)

type Clients struct {
	Redis    redis.Client
	Twilio   twilio.Client
	SendGrid sendgrid.Client
}

func wireClients(log *logger.Logger) (Clients, error) {
	var rc redis.Client
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		client, err := redis.New(log, redis.ConfigFromEnv(log))
		if err != nil {
			log.Warn("Redis unavailable, escalations and cache run in memory", "error", err)
		} else {
			rc = client
		}
	} else {
		log.Info("REDIS_ADDR not set, escalations and cache run in memory")
	}

	tw, err := twilio.New(log, twilio.ConfigFromEnv(log))
	if err != nil {
		return Clients{}, err
	}
	sg, err := sendgrid.New(log, sendgrid.ConfigFromEnv(log))
	if err != nil {
		return Clients{}, err
	}

	return Clients{Redis: rc, Twilio: tw, SendGrid: sg}, nil
}
