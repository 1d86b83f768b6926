package app

import (
	"strings"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/utils"
)

type Config struct {
	Port         string
	AllowOrigins []string

	// VoiceSharedEscalations controls whether phone calls share the
	// escalation store with the text channels. When false, voice runs its
	// own in-memory store and voice escalations never appear in the
	// operator API.
	VoiceSharedEscalations bool
}

func LoadConfig(log *logger.Logger) Config {
	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5174", log)
	return Config{
		Port:                   utils.GetEnv("PORT", "8080", log),
		AllowOrigins:           splitCSV(origins),
		VoiceSharedEscalations: utils.GetEnvAsBool("VOICE_SHARED_ESCALATIONS", true, log),
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
