package main

import (
	"net/http"

	"topthat/config"
	"topthat/internal/auth"
	"topthat/internal/controller"
	"topthat/internal/game/manager"
	"topthat/internal/lobby"
	"topthat/internal/storage"
	"topthat/internal/utils"
	"topthat/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	config.Load()
	utils.Init()

	//-------------------------------------------------------
	// 1. Storage. Redis backs the room index; when it is not
	//    reachable the lobby falls back to the in-memory repo.
	//-------------------------------------------------------
	var repo lobby.Repo
	if rdb, err := storage.OpenRedis(
		config.C.Redis.Addr,
		config.C.Redis.Password,
		config.C.Redis.DB,
	); err != nil {
		utils.Print.Warn("redis unavailable, using in-memory room index", "err", err)
		repo = lobby.NewMemoryRepo()
	} else {
		repo = lobby.NewRedisRepo(rdb)
	}

	var results *storage.ResultStore
	if config.C.Database.DSN != "" {
		db, err := storage.OpenPostgres(config.C.Database.DSN)
		if err != nil {
			utils.Error.Fatalf("Postgres init failed: %v", err)
		}
		results = storage.NewResultStore(db)
	}

	//-------------------------------------------------------
	// 2. Gin + CORS
	//-------------------------------------------------------
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	//-------------------------------------------------------
	// 3. Hub first, everything else hangs off it
	//-------------------------------------------------------
	hub := websocket.NewHub(config.C.Game.AckTimeout, config.C.Game.AckRetries)

	//-------------------------------------------------------
	// 4. Lobby, GameManager, Controller
	//-------------------------------------------------------
	lobbySvc := lobby.NewService(repo, config.C.Game.MaxPlayers, config.C.Game.RoomTTLSeconds)

	games := manager.NewGameManager(manager.Options{
		HandSize:        config.C.Game.HandSize,
		MaxPlayers:      config.C.Game.MaxPlayers,
		CPUDelay:        config.C.Game.CPUTurnDelay,
		CPUSpecialDelay: config.C.Game.CPUSpecialDelay,
		Results:         results,
	})

	tokens := auth.NewTokens(config.C.JWT.Secret, 0)
	ctrl := controller.New(hub, lobbySvc, games, tokens)

	// callbacks are set before the hub loop starts
	hub.OnIncoming = ctrl.HandleMessage
	hub.OnDisconnect = ctrl.HandleDisconnect
	go hub.Run()

	//-------------------------------------------------------
	// 5. Routes
	//-------------------------------------------------------
	r.GET("/ws", websocket.ServeWS(hub))

	lh := lobby.NewHandler(lobbySvc)
	r.POST("/lobby/create", lh.Create)
	r.POST("/lobby/join", lh.Join)
	r.GET("/lobby/:code", lh.Get)

	//-------------------------------------------------------
	// 6. Serve
	//-------------------------------------------------------
	utils.Info.Printf("Server running on %s", config.C.Server.Port)
	if err := r.Run(config.C.Server.Port); err != nil {
		utils.Error.Fatalf("server stopped: %v", err)
	}
}
