package cron

import (
	"Courier/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine          *cron.Cron
	messageClearJob *job.MessageClearJob
}

func NewCronManager(messageClearJob *job.MessageClearJob) *Manager {
	return &Manager{
		engine:          cron.New(cron.WithSeconds()),
		messageClearJob: messageClearJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	// 每天凌晨四点清理过期日志
	if _, err := s.engine.AddJob("0 0 4 * * *", s.messageClearJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	s.engine.Stop()
}
