package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/repos"
)

type Repos struct {
	Ticket     repos.TicketRepo
	Department repos.DepartmentRepo
}

func wireRepos(db *gorm.DB) Repos {
	return Repos{
		Ticket:     repos.NewTicketRepo(db),
		Department: repos.NewDepartmentRepo(db),
	}
}
