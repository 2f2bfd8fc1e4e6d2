package main

import (
	"github.com/chainreaction/gameserver/broker"
	"github.com/chainreaction/gameserver/config"
	"github.com/chainreaction/gameserver/lifecycle"
	"github.com/chainreaction/gameserver/lobby"
	"github.com/chainreaction/gameserver/logger"
	"github.com/chainreaction/gameserver/mail"
	"github.com/chainreaction/gameserver/monitor"
	"github.com/chainreaction/gameserver/persistence"
	"github.com/chainreaction/gameserver/rpc"
	"github.com/chainreaction/gameserver/server"
	"github.com/chainreaction/gameserver/services"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	hub := broker.NewHub(cfg.Broker.AppKey, cfg.Broker.AppSecret)
	allocator := lobby.NewAllocator(db)

	var mailer mail.Sender = mail.NopSender{}
	if cfg.Mail.Enabled {
		mailer, err = mail.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Sender, cfg.Mail.Password)
		if err != nil {
			logger.Log.Fatalf("Failed to set up mail sender: %v", err)
		}
	}

	accounts := services.NewAccountService(db, hub, allocator, mailer, cfg.Server.BaseURL)
	controller := lifecycle.NewController(db, allocator, hub)

	mon := monitor.NewMonitor("gameserver")
	mon.StartServer(cfg.Server.MetricsAddress)

	adminService := rpc.NewAdminService(db, hub)
	if err := adminService.Register(); err != nil {
		logger.Log.Fatalf("Failed to register admin service: %v", err)
	}
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to start RPC server: %v", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, db, hub, controller, accounts, mon)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
