package main

import (
	"context"
	"os/signal"
	"syscall"

	"greenhouse_control/internal/actuatornode"
	"greenhouse_control/internal/config"
	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/transport/mqtt"
)

// growLEDs is the number of LEDs on the grow-light bank.
const growLEDs = 4

func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).Named("actuator")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nodeID := cfg.NodeID + "-actuator"
	broker := mqtt.NewClient(cfg.MQTT, nodeID, log.Named("mqtt"))
	node := actuatornode.New(nodeID, actuatornode.NewLogOutput(log.Named("outputs"), growLEDs), broker, cfg.Actuator.StateTopic, log)

	// Apply publishes a report, so it must not run on the broker's delivery goroutine.
	commands := make(chan models.CommandEnvelope, 8)
	err = mqtt.NewCommandSubscriber(broker, cfg.MQTT.Topics.Commands, log).OnCommand(func(c models.CommandEnvelope) {
		select {
		case commands <- c:
		case <-ctx.Done():
		}
	})
	if err != nil {
		log.Fatalw("failed to subscribe to commands", "err", err)
	}
	go func() {
		if err := broker.Connect(ctx); err != nil {
			log.Warnw("mqtt_connect_failed", "err", err)
		}
	}()

	log.Infow("actuator_node_started", "node_id", nodeID)
	for {
		select {
		case <-ctx.Done():
			log.Infow("actuator_node_stopped")
			broker.Disconnect()
			return
		case c := <-commands:
			if err := node.Apply(ctx, c); err != nil {
				log.Errorw("command_apply_failed", "seq", c.Seq, "err", err)
			}
		}
	}
}
