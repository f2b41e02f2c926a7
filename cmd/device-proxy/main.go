// Command device-proxy mirrors a remote device and drives it from a
// console.
//
// The proxy builds mirror controls from the same device file the host was
// started with, connects over TCP or through an MQTT broker and keeps the
// mirror in sync with the host, redialing with backoff when the host goes
// away. Commands typed at the prompt travel to the host; the state shown
// is what the host reports back.
//
// Usage:
//
//	device-proxy [flags]
//
// Flags:
//
//	-config string        Device file (YAML) shared with the host
//	-connect string       Host address (default "localhost:4990")
//	-mqtt-broker string   MQTT broker URL; replaces the TCP connection
//	-mqtt-prefix string   MQTT topic prefix (default "icd/devices")
//	-interactive          Start the command console (default true)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-log-format string    Log format: text, json (default "text")
//	-protocol-log string  Protocol capture file (CBOR)
//
// Examples:
//
//	# Drive the demo projector served on this machine
//	device-proxy
//
//	# Mirror a display through a broker without a console
//	device-proxy -config display.yaml -mqtt-broker tcp://localhost:1883 -interactive=false
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/cmd/device-proxy/interactive"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/internal/cli"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/config"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/proxy"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/transport"
)

// Config holds the command-line configuration.
type Config struct {
	ConfigFile  string
	Connect     string
	MQTTBroker  string
	MQTTPrefix  string
	Interactive bool
	LogLevel    string
	LogFormat   string
	ProtocolLog string
}

var cfg Config

func init() {
	flag.StringVar(&cfg.ConfigFile, "config", "", "Device file (YAML) shared with the host")
	flag.StringVar(&cfg.Connect, "connect", fmt.Sprintf("localhost:%d", transport.DefaultPort), "Host address")
	flag.StringVar(&cfg.MQTTBroker, "mqtt-broker", "", "MQTT broker URL; replaces the TCP connection")
	flag.StringVar(&cfg.MQTTPrefix, "mqtt-prefix", transport.DefaultMQTTPrefix, "MQTT topic prefix")
	flag.BoolVar(&cfg.Interactive, "interactive", true, "Start the command console")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text, json")
	flag.StringVar(&cfg.ProtocolLog, "protocol-log", "", "Protocol capture file (CBOR)")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "device-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	out := cli.NewOutput(os.Stderr)
	logger, err := cli.NewLogger(out, cfg.LogLevel, cfg.LogFormat)
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
	md := proxy.NewMirrorDevice(spec.ID, spec.Name, logger)
	if err := config.MirrorFactory(config.Options{Logger: logger, ProtocolLogger: plog}).Apply(md.Device, spec); err != nil {
		return fmt.Errorf("building mirror: %w", err)
	}
	defer md.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sessionCfg := cmdtree.Config{
		Name:           "proxy",
		Role:           log.RoleMirror,
		DeviceID:       spec.ID,
		Logger:         logger,
		ProtocolLogger: plog,
	}
	reconnector := transport.NewReconnector(
		func(ctx context.Context) (transport.Transport, error) {
			return connect(ctx, spec.ID, logger, plog)
		},
		func(ctx context.Context, t transport.Transport) error {
			return mirror(ctx, md, t, sessionCfg, logger)
		},
		transport.ReconnectConfig{
			Logger: logger,
			OnStateChange: func(from, to transport.ConnState) {
				logger.Debug("connection state", "from", from, "to", to)
			},
		},
	)

	served := make(chan error, 1)
	go func() { served <- reconnector.Run(ctx) }()

	if cfg.Interactive {
		console, err := interactive.New(md.Device)
		if err != nil {
			return err
		}
		out.SetOutput(console.Stdout())
		console.Run(ctx, cancel)
		out.SetOutput(os.Stderr)
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down")
	cancel()
	if err := <-served; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// mirror runs one session over t until the connection ends. The mirror is
// marked offline afterwards.
func mirror(ctx context.Context, md *proxy.MirrorDevice, t transport.Transport, sessionCfg cmdtree.Config, logger *slog.Logger) error {
	defer md.SetOnline(false)

	session := cmdtree.NewSession(md, t, sessionCfg)
	defer session.Close()

	served := make(chan error, 1)
	go func() { served <- t.Serve(ctx, session) }()

	if err := session.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}
	logger.Info("mirroring device", "device", md.String(), "controls", md.Controls().IDs())
	return <-served
}

func connect(ctx context.Context, deviceID int, logger *slog.Logger, plog log.Logger) (transport.Transport, error) {
	if cfg.MQTTBroker != "" {
		t, err := transport.DialMQTT(transport.MQTTConfig{
			Broker:         cfg.MQTTBroker,
			Prefix:         cfg.MQTTPrefix,
			DeviceID:       deviceID,
			Role:           log.RoleMirror,
			QoS:            1,
			Logger:         logger,
			ProtocolLogger: plog,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("connected", "broker", cfg.MQTTBroker, "prefix", cfg.MQTTPrefix)
		return t, nil
	}

	s, err := transport.Dial(ctx, cfg.Connect, transport.StreamConfig{Logger: logger, ProtocolLogger: plog})
	if err != nil {
		return nil, err
	}
	logger.Info("connected", "address", cfg.Connect, "session", s.SessionID())
	return s, nil
}
