package queue

import (
	"github.com/creatorpulse/metrics-api/internal/service"
)

type Queue struct {
	ss service.SyncService
}

func NewQueue(ss service.SyncService) *Queue {
	return &Queue{
		ss: ss,
	}
}

const TaskTypeSyncUser = "sync:user"

type SyncUserPayload struct {
	UserID   int64  `json:"user_id"`
	Platform string `json:"platform"`
}
