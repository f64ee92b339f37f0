package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleSyncUserTask(ctx context.Context, task *asynq.Task) error {
	var payload SyncUserPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	result, err := j.ss.SyncUser(ctx, payload.UserID, payload.Platform)
	if err != nil {
		log.Printf("Sync failed for user %d on %s: %v", payload.UserID, payload.Platform, err)
		return err
	}

	if len(result.Errors) > 0 {
		for _, itemErr := range result.Errors {
			log.Printf("Sync item error for user %d on %s (%s): %s", payload.UserID, payload.Platform, itemErr.ContentID, itemErr.Message)
		}
	}
	log.Printf("Sync finished for user %d on %s: %d items", payload.UserID, payload.Platform, result.SyncedItemCount)

	return nil
}
