package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meshgate/internal/app"
	"meshgate/internal/bus"
	"meshgate/internal/commands"
	"meshgate/internal/config"
	"meshgate/internal/domain"
	"meshgate/internal/irc"
	"meshgate/internal/logging"
	"meshgate/internal/lookup"
	"meshgate/internal/mesh"
	"meshgate/internal/pending"
	"meshgate/internal/radio"
	"meshgate/internal/relay"
	"meshgate/internal/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run gateway", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "meshgate.json", "path to config file")
	host := flag.String("host", "", "chat listener host override")
	port := flag.Int("port", 0, "chat listener port override")
	name := flag.String("name", "", "server name override")
	controlChannel := flag.String("control-channel", "", "control channel override")
	connector := flag.String("connector", "", "mesh connector override (ip, serial, mock)")
	meshHost := flag.String("mesh-host", "", "radio ip/hostname override")
	meshPort := flag.Int("mesh-port", 0, "radio tcp port override")
	meshChannel := flag.Int("mesh-channel", -1, "default mesh channel index override")
	serialPort := flag.String("serial-port", "", "radio serial port override")
	verbose := flag.Bool("v", false, "debug logging")
	writeConfig := flag.Bool("write-config", false, "write the effective config to the config path and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("meshgate", app.BuildVersionWithDate())

		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, overrides{
		host:           *host,
		port:           *port,
		name:           *name,
		controlChannel: *controlChannel,
		connector:      *connector,
		meshHost:       *meshHost,
		meshPort:       *meshPort,
		meshChannel:    *meshChannel,
		serialPort:     *serialPort,
		verbose:        *verbose,
	})
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if *writeConfig {
		if err := config.Save(*configPath, cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Println("wrote", *configPath)

		return nil
	}

	logManager := logging.NewManager()
	if err := logManager.Configure(cfg.Logging, "meshgate.log"); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logManager.Close() }()
	logManager.Logger("main").Info("starting meshgate",
		"version", app.BuildVersionWithDate(), "connector", string(cfg.Mesh.Connector))

	messageBus := bus.New(logManager.Logger("bus"))
	defer messageBus.Close()

	nodes := domain.NewNodeStore()
	nodes.Start(ctx, messageBus)

	meshIface, err := buildMeshInterface(cfg, logManager, messageBus)
	if err != nil {
		return err
	}
	defer func() { _ = meshIface.Close() }()

	server := irc.NewServer(logManager.Logger("irc"),
		cfg.Server.Host, cfg.Server.Port, cfg.Server.Name, cfg.Server.ControlChannel)

	// The tracker's expiry callback routes through the relay, which is built
	// after the tracker; bind it late.
	var meshRelay *relay.Relay
	ackTimeout := time.Duration(cfg.Mesh.AckTimeoutSeconds) * time.Second
	tracker := pending.NewTracker(logManager.Logger("pending"), ackTimeout, func(id uint32, req pending.Request) {
		if meshRelay != nil {
			meshRelay.OnTimeout(id, req)
		}
	})
	meshRelay = relay.New(logManager.Logger("relay"), messageBus, nodes, tracker, meshIface, server)

	env := &commands.Env{
		Logger:         logManager.Logger("commands"),
		Nodes:          nodes,
		Pending:        tracker,
		Mesh:           meshIface,
		Responder:      server,
		DefaultChannel: cfg.Mesh.DefaultChannel,
		AckTimeout:     ackTimeout,
		StartedAt:      time.Now(),
		SessionCount:   server.SessionCount,
		HF:             lookup.NewHFClient(lookup.HFConfig{Endpoint: cfg.HF.SourceURL}),
	}
	if cfg.Weather.APIKey != "" && cfg.Weather.Location != "" {
		env.Weather = lookup.NewWeatherClient(lookup.WeatherConfig{
			APIKey:   cfg.Weather.APIKey,
			Location: cfg.Weather.Location,
			Units:    cfg.Weather.Units,
		})
	}
	registry := commands.DefaultRegistry()
	server.OnRoomMessage = func(nick, text string) bool {
		return registry.Dispatch(ctx, env, nick, text)
	}

	tracker.Start()
	defer tracker.Stop()
	meshRelay.Start(ctx)
	if err := meshIface.Start(ctx); err != nil {
		return fmt.Errorf("start mesh interface: %w", err)
	}

	return server.Run(ctx)
}

type overrides struct {
	host           string
	port           int
	name           string
	controlChannel string
	connector      string
	meshHost       string
	meshPort       int
	meshChannel    int
	serialPort     string
	verbose        bool
}

func applyOverrides(cfg *config.AppConfig, o overrides) {
	if v := strings.TrimSpace(o.host); v != "" {
		cfg.Server.Host = v
	}
	if o.port > 0 {
		cfg.Server.Port = o.port
	}
	if v := strings.TrimSpace(o.name); v != "" {
		cfg.Server.Name = v
	}
	if v := strings.TrimSpace(o.controlChannel); v != "" {
		cfg.Server.ControlChannel = v
	}
	if v := strings.TrimSpace(o.connector); v != "" {
		cfg.Mesh.Connector = config.ConnectorType(v)
	}
	if v := strings.TrimSpace(o.meshHost); v != "" {
		cfg.Mesh.Host = v
		if cfg.Mesh.Connector == config.ConnectorMock {
			cfg.Mesh.Connector = config.ConnectorIP
		}
	}
	if o.meshPort > 0 {
		cfg.Mesh.Port = o.meshPort
	}
	if o.meshChannel >= 0 {
		cfg.Mesh.DefaultChannel = uint32(o.meshChannel)
	}
	if v := strings.TrimSpace(o.serialPort); v != "" {
		cfg.Mesh.SerialPort = v
		cfg.Mesh.Connector = config.ConnectorSerial
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
}

func buildMeshInterface(cfg config.AppConfig, logManager *logging.Manager, messageBus bus.MessageBus) (mesh.Interface, error) {
	switch cfg.Mesh.Connector {
	case config.ConnectorIP:
		codec, err := radio.NewMeshtasticCodec()
		if err != nil {
			return nil, fmt.Errorf("init codec: %w", err)
		}
		tr := transport.NewIPTransport(cfg.Mesh.Host, cfg.Mesh.Port)

		return radio.NewService(logManager.Logger("radio"), messageBus, tr, codec), nil
	case config.ConnectorSerial:
		codec, err := radio.NewMeshtasticCodec()
		if err != nil {
			return nil, fmt.Errorf("init codec: %w", err)
		}
		tr := transport.NewSerialTransport(cfg.Mesh.SerialPort, cfg.Mesh.SerialBaud)

		return radio.NewService(logManager.Logger("radio"), messageBus, tr, codec), nil
	case config.ConnectorMock:
		return radio.NewSimulator(logManager.Logger("radio"), messageBus), nil
	default:
		return nil, fmt.Errorf("unknown connector: %s", cfg.Mesh.Connector)
	}
}
