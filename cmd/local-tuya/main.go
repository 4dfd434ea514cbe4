// Command local-tuya bridges Tuya devices on the local network to MQTT.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"local-tuya/bridge"
	"local-tuya/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("could not load configuration")
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	manager, err := bridge.NewManager(cfg)
	if err != nil {
		log.WithError(err).Fatal("could not initialize devices")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := manager.Run(ctx); err != nil {
		log.WithError(err).Error("driver stopped")
		os.Exit(1)
	}
}
