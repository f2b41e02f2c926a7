// Command device-host serves a locally configured device to remote
// proxies.
//
// The device is built from a YAML file (or a demo projector when none is
// given) and served over TCP, one session per connection, or through an
// MQTT broker.
//
// Usage:
//
//	device-host [flags]
//
// Flags:
//
//	-config string        Device file (YAML)
//	-listen string        TCP listen address (default ":4990")
//	-mqtt-broker string   MQTT broker URL; replaces the TCP listener
//	-mqtt-prefix string   MQTT topic prefix (default "icd/devices")
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-log-format string    Log format: text, json (default "text")
//	-protocol-log string  Protocol capture file (CBOR)
//
// Examples:
//
//	# Serve the demo projector on the default port
//	device-host
//
//	# Serve a configured display through a broker
//	device-host -config display.yaml -mqtt-broker tcp://localhost:1883
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/internal/cli"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/config"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/proxy"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/transport"
)

// Config holds the command-line configuration.
type Config struct {
	ConfigFile  string
	Listen      string
	MQTTBroker  string
	MQTTPrefix  string
	LogLevel    string
	LogFormat   string
	ProtocolLog string
}

var cfg Config

func init() {
	flag.StringVar(&cfg.ConfigFile, "config", "", "Device file (YAML)")
	flag.StringVar(&cfg.Listen, "listen", fmt.Sprintf(":%d", transport.DefaultPort), "TCP listen address")
	flag.StringVar(&cfg.MQTTBroker, "mqtt-broker", "", "MQTT broker URL; replaces the TCP listener")
	flag.StringVar(&cfg.MQTTPrefix, "mqtt-prefix", transport.DefaultMQTTPrefix, "MQTT topic prefix")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text, json")
	flag.StringVar(&cfg.ProtocolLog, "protocol-log", "", "Protocol capture file (CBOR)")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "device-host: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := cli.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	plog, closeLog, err := cli.ProtocolLogger(cfg.ProtocolLog, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	spec, err := cli.LoadSpec(cfg.ConfigFile)
	if err != nil {
		return err
	}
	dev, err := config.DefaultFactory(config.Options{Logger: logger, ProtocolLogger: plog}).NewDevice(spec)
	if err != nil {
		return fmt.Errorf("building device: %w", err)
	}
	defer dev.Close()
	dev.SetOnline(true)

	logger.Info("device ready", "device", dev.String(), "controls", dev.Controls().IDs())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sessionCfg := cmdtree.Config{
		Name:           "host",
		Role:           log.RoleOriginator,
		DeviceID:       dev.ID(),
		Logger:         logger,
		ProtocolLogger: plog,
	}

	if cfg.MQTTBroker != "" {
		return serveMQTT(ctx, dev, sessionCfg, logger, plog)
	}
	return serveTCP(ctx, dev, sessionCfg, logger, plog)
}

func serveTCP(ctx context.Context, dev *device.Device, sessionCfg cmdtree.Config, logger *slog.Logger, plog log.Logger) error {
	listener, err := transport.NewListener(transport.ListenerConfig{
		Address: cfg.Listen,
		Stream:  transport.StreamConfig{ProtocolLogger: plog, Logger: logger},
		Logger:  logger,
		Handle: func(ctx context.Context, s *transport.Stream) {
			session := cmdtree.NewSession(proxy.NewDeviceNode(dev, logger), s, sessionCfg)
			defer session.Close()
			if err := s.Serve(ctx, session); err != nil && ctx.Err() == nil {
				logger.Warn("session ended", "session", s.SessionID(), "error", err)
			}
		},
	})
	if err != nil {
		return err
	}
	if err := listener.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return listener.Stop()
}

func serveMQTT(ctx context.Context, dev *device.Device, sessionCfg cmdtree.Config, logger *slog.Logger, plog log.Logger) error {
	t, err := transport.DialMQTT(transport.MQTTConfig{
		Broker:         cfg.MQTTBroker,
		Prefix:         cfg.MQTTPrefix,
		DeviceID:       dev.ID(),
		Role:           log.RoleOriginator,
		QoS:            1,
		Logger:         logger,
		ProtocolLogger: plog,
	})
	if err != nil {
		return err
	}
	defer t.Close()

	session := cmdtree.NewSession(proxy.NewDeviceNode(dev, logger), t, sessionCfg)
	defer session.Close()

	logger.Info("serving over mqtt", "broker", cfg.MQTTBroker, "prefix", cfg.MQTTPrefix)
	if err := t.Serve(ctx, session); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}
