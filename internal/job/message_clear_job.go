package job

import (
	"Courier/internal/api/config"
	"Courier/internal/pkg/mongo"
	"context"
	log "log/slog"
	"time"
)

// MessageClearJob 按天清理过期的消息日志集合
type MessageClearJob struct {
	logRepo mongo.MessageLogRepo
}

func NewMessageClearJob(logRepo mongo.MessageLogRepo) *MessageClearJob {
	return &MessageClearJob{logRepo: logRepo}
}

func (s *MessageClearJob) Run() {
	ctx := context.Background()
	log.Info("start message log cleanup job")

	collections, err := s.logRepo.LogCollections(ctx)
	if err != nil {
		log.Error("failed to list message log collections", "err", err)
		return
	}

	deadline := time.Now().AddDate(0, 0, -config.Cfg.IM.LogRetainDays)
	count := 0
	for _, collection := range collections {
		date, ok := mongo.LogCollectionDate(collection)
		if !ok {
			log.Warn("invalid message log collection name", "collection", collection)
			continue
		}
		if !date.Before(deadline) {
			continue
		}

		if err := s.logRepo.Drop(ctx, collection); err != nil {
			log.Error("failed to drop message log collection", "collection", collection, "err", err)
			continue
		}
		count++
		log.Info("dropped expired message log collection", "collection", collection)
	}

	if count > 0 {
		log.Info("message log cleanup job finished", "dropped_count", count)
	}
}
