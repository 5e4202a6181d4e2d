package wire

import (
	"Courier/internal/api"
	"Courier/internal/api/handler"
	"Courier/internal/job"
	"Courier/internal/pkg/cron"
	"Courier/internal/pkg/im"
	"Courier/internal/pkg/mongo"
	"Courier/internal/repository"
	"Courier/internal/service"

	"github.com/gin-gonic/gin"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router    *gin.Engine
	DB        *gorm.DB
	CronMgr   *cron.Manager
	IMService service.IMService
	LogRepo   mongo.MessageLogRepo
}

func BuildApplication(db *gorm.DB, mongoDB *mongodriver.Database) (*ApplicationContainer, error) {
	registry := im.NewRegistry()

	groupRepo := repository.NewGroupRepo(db)
	messageRepo := mongo.NewMessageRepo(mongoDB)
	logRepo := mongo.NewMessageLogRepo(mongoDB)

	connStatusService := service.NewConnStatusService()
	authService := service.NewAuthService()
	groupService := service.NewGroupService(groupRepo)
	messageService := service.NewMessageService(messageRepo, connStatusService, registry)

	imService, err := service.NewIMService(registry, messageService, groupService, authService, connStatusService)
	if err != nil {
		return nil, err
	}

	handlers := &api.HandlersGroup{
		WSHandler: handler.NewWsHandler(imService, registry, logRepo),
	}
	router := api.SetupRouter(handlers)

	cronMgr := cron.NewCronManager(job.NewMessageClearJob(logRepo))

	return &ApplicationContainer{
		Router:    router,
		DB:        db,
		CronMgr:   cronMgr,
		IMService: imService,
		LogRepo:   logRepo,
	}, nil
}
