package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
	}
	Game struct {
		MaxPlayers      int
		HandSize        int
		AckTimeout      time.Duration
		AckRetries      int
		CPUTurnDelay    time.Duration
		CPUSpecialDelay time.Duration
		RoomTTLSeconds  int
	}
}

var C Config

func Load() {
	viper.SetConfigFile("config/config.yaml")

	viper.SetDefault("game.maxplayers", 4)
	viper.SetDefault("game.handsize", 3)
	viper.SetDefault("game.acktimeout", 5*time.Second)
	viper.SetDefault("game.ackretries", 3)
	viper.SetDefault("game.cputurndelay", 2*time.Second)
	viper.SetDefault("game.cpuspecialdelay", 3*time.Second)
	viper.SetDefault("game.roomttlseconds", 1800)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}
	if err := viper.Unmarshal(&C); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}
}
