package services

import (
	"strings"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

// Classifier assigns language, department and priority to free-form client
// text with keyword rules. It backs ticket intake when no model is available
// and pre-fills routing hints when one is.
type Classifier interface {
	Classify(text string) Classification
}

type Classification struct {
	Language   string               `json:"language"`
	Department string               `json:"department"`
	Priority   types.TicketPriority `json:"priority"`
	Confidence float64              `json:"confidence"`
}

type classifier struct {
	log *logger.Logger
}

func NewClassifier(log *logger.Logger) Classifier {
	return &classifier{log: log.With("service", "Classifier")}
}

// Letters that occur in Kazakh but not in Russian.
const kazakhLetters = "әғқңөұүһі"

var priorityKeywords = map[types.TicketPriority][]string{
	types.TicketPriorityCritical: {"срочно", "критично", "не работает ничего", "авария", "простой", "взлом", "утечка"},
	types.TicketPriorityHigh:     {"не работает", "сломал", "заблокирован", "ошибка", "потерял доступ", "горит"},
	types.TicketPriorityLow:      {"вопрос", "как ", "подскажите", "уточнить", "интересует"},
}

var departmentKeywords = map[string][]string{
	"it_support": {"компьютер", "пароль", "принтер", "интернет", "программа", "почта", "vpn", "сеть", "ноутбук", "монитор", "доступ"},
	"hr":         {"отпуск", "зарплата", "увольнение", "больничный", "справка", "договор", "отгул", "кадры"},
	"finance":    {"счёт", "счет", "оплата", "возврат", "бюджет", "invoice", "расход", "платёж", "платеж"},
	"admin":      {"пропуск", "ключ", "офис", "мебель", "уборка", "канцелярия", "переезд", "парковка"},
}

func (c *classifier) Classify(text string) Classification {
	lower := strings.ToLower(text)

	out := Classification{
		Language:   detectLanguage(lower),
		Department: "",
		Priority:   types.TicketPriorityMedium,
		Confidence: 0.5,
	}

	bestHits := 0
	for dept, keywords := range departmentKeywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && dept < out.Department) {
			bestHits = hits
			out.Department = dept
		}
	}
	if bestHits > 0 {
		out.Confidence = 0.6 + 0.1*float64(min(bestHits, 3))
	}

	// Highest matched priority wins; critical checked first.
	for _, p := range []types.TicketPriority{types.TicketPriorityCritical, types.TicketPriorityHigh, types.TicketPriorityLow} {
		matched := false
		for _, kw := range priorityKeywords[p] {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if matched {
			out.Priority = p
			break
		}
	}

	c.log.Debug("classified message",
		"language", out.Language,
		"department", out.Department,
		"priority", out.Priority,
		"confidence", out.Confidence)
	return out
}

// detectLanguage distinguishes Kazakh from Russian by letters unique to the
// Kazakh alphabet. Everything else defaults to Russian.
func detectLanguage(lower string) string {
	for _, r := range lower {
		if strings.ContainsRune(kazakhLetters, r) {
			return "kz"
		}
	}
	return "ru"
}
