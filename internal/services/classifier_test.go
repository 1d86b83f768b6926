package services

import (
	"testing"

	"github.com/yungbote/helpdesk-backend/internal/types"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(testLogger())

	tests := []struct {
		name       string
		text       string
		language   string
		department string
		priority   types.TicketPriority
	}{
		{
			name:       "russian it question",
			text:       "Подскажите, как настроить vpn на ноутбуке",
			language:   "ru",
			department: "it_support",
			priority:   types.TicketPriorityLow,
		},
		{
			name:       "kazakh text detected by letters",
			text:       "Құпия сөзді ұмыттым, көмектесіңіз",
			language:   "kz",
			priority:   types.TicketPriorityMedium,
		},
		{
			name:       "blocked account is high priority",
			text:       "Мой аккаунт заблокирован, пароль не подходит",
			language:   "ru",
			department: "it_support",
			priority:   types.TicketPriorityHigh,
		},
		{
			name:       "critical outage",
			text:       "Срочно! Авария, не работает ничего в офисе",
			language:   "ru",
			priority:   types.TicketPriorityCritical,
		},
		{
			name:       "hr topic",
			text:       "Хочу оформить отпуск и уточнить про больничный",
			language:   "ru",
			department: "hr",
			priority:   types.TicketPriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Language != tt.language {
				t.Fatalf("language = %q, want %q", got.Language, tt.language)
			}
			if tt.department != "" && got.Department != tt.department {
				t.Fatalf("department = %q, want %q", got.Department, tt.department)
			}
			if got.Priority != tt.priority {
				t.Fatalf("priority = %q, want %q", got.Priority, tt.priority)
			}
		})
	}
}
