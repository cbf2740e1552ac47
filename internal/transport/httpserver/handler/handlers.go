package handler

import (
	"club-planner-go/internal/config"
	directorydomain "club-planner-go/internal/domain/directory"
	scheduledomain "club-planner-go/internal/domain/schedule"
	"club-planner-go/pkg/logger"
)

type Handlers struct {
	Schedule  *scheduledomain.Service
	Directory *directorydomain.Service
	feed      config.CalendarFeedConfig
	log       logger.Logger
}

func New(schedule *scheduledomain.Service, directory *directorydomain.Service, feed config.CalendarFeedConfig, log logger.Logger) *Handlers {
	return &Handlers{
		Schedule:  schedule,
		Directory: directory,
		feed:      feed,
		log:       log,
	}
}
