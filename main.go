package main

import (
	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/events"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/routes"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(models.All()...)

	if err := services.NewUserService(db, nil).EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail); err != nil {
		utils.Sugar.Fatalf("bootstrap admin: %v", err)
	}

	pub := events.NewPublisher(cfg.AMQPURL, cfg.EventsQueue)
	r := routes.SetupRouter(db, pub)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err := utils.GraceServer(":"+cfg.AppPort, r,
		func() {
			if err := pub.Close(); err != nil {
				utils.Sugar.Warnf("close event publisher: %v", err)
			}
		},
		utils.CloseRedis,
		func() { _ = utils.Sugar.Sync() },
	)
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
