package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"greenhouse_control/internal/config"
	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/sensornode"
	"greenhouse_control/internal/transport/mqtt"
)

// simulatedRSSI is the centre of the simulated radio signal, in dBm.
const simulatedRSSI = -62

func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).Named("sensor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nodeID := cfg.NodeID + "-sensor"
	broker := mqtt.NewClient(cfg.MQTT, nodeID, log.Named("mqtt"))

	node := sensornode.New(
		sensornode.NewEnvironment(cfg.Sensor.AmbientC, time.Now()),
		mqtt.NewReadingPublisher(broker, cfg.MQTT.Topics.Readings),
		sensornode.Options{
			NodeID:          cfg.NodeID,
			SampleInterval:  cfg.Sensor.SampleInterval,
			PublishInterval: cfg.Sensor.PublishInterval,
			RSSI:            sensornode.SimulatedRSSI(simulatedRSSI),
		},
		log,
	)

	// the simulated greenhouse reacts to what the coordinator commands
	if err := mqtt.NewCommandSubscriber(broker, cfg.MQTT.Topics.Commands, log).OnCommand(node.ObserveCommand); err != nil {
		log.Fatalw("failed to subscribe to commands", "err", err)
	}
	go func() {
		if err := broker.Connect(ctx); err != nil {
			log.Warnw("mqtt_connect_failed", "err", err)
		}
	}()

	log.Infow("sensor_node_started", "node_id", cfg.NodeID,
		"sample_interval", cfg.Sensor.SampleInterval, "publish_interval", cfg.Sensor.PublishInterval)
	node.Run(ctx)

	log.Infow("sensor_node_stopped")
	broker.Disconnect()
}
