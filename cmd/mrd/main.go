package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/adapters/clock"
	"github.com/mikey-austin/media_remote/internal/adapters/hass"
	"github.com/mikey-austin/media_remote/internal/adapters/idgen"
	"github.com/mikey-austin/media_remote/internal/adapters/mqttserver"
	"github.com/mikey-austin/media_remote/internal/modules/bridge"
	embeddedmqtt "github.com/mikey-austin/media_remote/internal/modules/embedded_mqtt"
	"github.com/mikey-austin/media_remote/internal/mrd"
	"github.com/mikey-austin/media_remote/pkg/remote"
)

const defaultListen = "127.0.0.1:1883"

func main() {
	var (
		configPath  string
		hubURL      string
		hubToken    string
		broker      string
		identity    string
		topicBase   string
		logLevel    string
		logFormat   string
		logOutput   string
		logSource   bool
		logUTC      bool
		logColor    bool
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := mrd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&hubURL, "hub", "", "hub URL override")
	flag.StringVar(&hubToken, "token", "", "hub token override")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&logSource, "log-source", false, "include source file in logs")
	flag.BoolVar(&logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&logColor, "log-color", false, "enable colored log output (text only)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := mrd.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, overrides{
		hubURL:    hubURL,
		hubToken:  hubToken,
		broker:    broker,
		identity:  identity,
		topicBase: topicBase,
		logLevel:  logLevel,
		logFormat: logFormat,
		logOutput: logOutput,
		logSource: logSource,
		logUTC:    logUTC,
		logColor:  logColor,
	})

	if printConfig {
		if err := printResolvedConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := validate(cfg, moduleOnly); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dryRun {
		return
	}

	logger := mrd.NewLogger(mrd.LogConfig{
		Level:     cfg.Server.LogLevel,
		Format:    cfg.Server.LogFormat,
		Output:    cfg.Server.LogOutput,
		AddSource: cfg.Server.LogSource,
		UTC:       cfg.Server.LogUTC,
		Color:     cfg.Server.LogColor,
	})
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	logger.Info("mrd starting",
		zap.String("hub", cfg.Server.HubURL),
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.String("log_format", cfg.Server.LogFormat),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var (
		client    *mqttserver.Client
		hubClient *hass.Client
	)
	if moduleOnly != "embedded_mqtt" && cfg.Modules.Bridge.Enabled {
		hubClient = hass.NewClient(logger.With(zap.String("module", "hub")), cfg.Server.HubURL, cfg.Server.HubToken)

		will, err := json.Marshal(remote.Presence{
			NodeID: cfg.Modules.Bridge.NodeID,
			Kind:   "offline",
			Name:   cfg.Modules.Bridge.Name,
		})
		if err != nil {
			logger.Error("presence encode failed", zap.Error(err))
			os.Exit(1)
		}
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL:   cfg.Server.Broker,
			ClientID:    "mrd-" + idgen.Generator{}.NewID(),
			Username:    cfg.Server.Auth.User,
			Password:    cfg.Server.Auth.Pass,
			TLSCA:       cfg.Server.TLS.CA,
			TLSCert:     cfg.Server.TLS.Cert,
			TLSKey:      cfg.Server.TLS.Key,
			Timeout:     2 * time.Second,
			Logger:      logger.With(zap.String("module", "mqtt")),
			WillTopic:   remote.TopicPresence(cfg.Server.TopicBase, cfg.Modules.Bridge.NodeID),
			WillPayload: will,
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
	}

	modules, err := buildModules(cfg, client, hubClient, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := mrd.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

type overrides struct {
	hubURL    string
	hubToken  string
	broker    string
	identity  string
	topicBase string
	logLevel  string
	logFormat string
	logOutput string
	logSource bool
	logUTC    bool
	logColor  bool
}

func applyOverrides(cfg *mrd.Config, o overrides) {
	if o.hubURL != "" {
		cfg.Server.HubURL = o.hubURL
	}
	if o.hubToken != "" {
		cfg.Server.HubToken = o.hubToken
	}
	if o.broker != "" {
		cfg.Server.Broker = o.broker
	}
	if o.identity != "" {
		cfg.Server.Identity = o.identity
	}
	if o.topicBase != "" {
		cfg.Server.TopicBase = o.topicBase
	}
	if o.logLevel != "" {
		cfg.Server.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Server.LogFormat = o.logFormat
	}
	if o.logOutput != "" {
		cfg.Server.LogOutput = o.logOutput
	}
	if o.logSource {
		cfg.Server.LogSource = true
	}
	if o.logUTC {
		cfg.Server.LogUTC = true
	}
	if o.logColor {
		cfg.Server.LogColor = true
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = remote.BaseTopic
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
	if cfg.Modules.Bridge.NodeID == "" && cfg.Server.Identity != "" {
		cfg.Modules.Bridge.NodeID = cfg.Server.Identity
	}
}

func validate(cfg mrd.Config, moduleOnly string) error {
	if moduleOnly == "embedded_mqtt" {
		if !cfg.Modules.EmbeddedMQTT.Enabled {
			return errors.New("embedded_mqtt is not enabled")
		}
		return nil
	}
	if cfg.Server.Broker == "" {
		return errors.New("broker is required")
	}
	if !cfg.Modules.Bridge.Enabled {
		return nil
	}
	if cfg.Server.HubURL == "" {
		return errors.New("server.hub_url is required")
	}
	if cfg.Server.HubToken == "" {
		return errors.New("server.hub_token is required")
	}
	return nil
}

func buildModules(cfg mrd.Config, client *mqttserver.Client, hubClient *hass.Client, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]mrd.ModuleRunner, error) {
	modules := []mrd.ModuleRunner{}
	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		if moduleOnly == "" || moduleOnly == "embedded_mqtt" {
			mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
			if err != nil {
				return nil, err
			}
			modules = append(modules, mrd.ModuleRunner{
				Name: "embedded_mqtt",
				Run:  mod.Run,
			})
		}
	}

	if cfg.Modules.Bridge.Enabled && hubClient != nil {
		if moduleOnly == "" || moduleOnly == "bridge" {
			retry := time.Duration(cfg.Server.RetryMS) * time.Millisecond
			modules = append(modules, mrd.ModuleRunner{
				Name: "hub",
				Run: func(ctx context.Context) error {
					return hubClient.Run(ctx, retry)
				},
			})

			mod, err := bridge.NewModule(logger.With(zap.String("module", "bridge")), client, hubClient, clock.Clock{}, bridge.Config{
				NodeID:     cfg.Modules.Bridge.NodeID,
				TopicBase:  cfg.Server.TopicBase,
				Name:       cfg.Modules.Bridge.Name,
				Core:       cfg.CoreSettings(),
				Controls:   cfg.Modules.Bridge.ControlsSettings(),
				Tick:       time.Duration(cfg.Modules.Bridge.TickMS) * time.Millisecond,
				VisibleTTL: time.Duration(cfg.Modules.Bridge.VisibleTTLMS) * time.Millisecond,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, mrd.ModuleRunner{
				Name: "bridge",
				Run:  mod.Run,
			})
		}
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func enabledModules(cfg mrd.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.Bridge.Enabled {
		out = append(out, "bridge")
	}
	return out
}

func printResolvedConfig(w io.Writer, cfg mrd.Config) error {
	_, err := fmt.Fprintf(w,
		"hub=%s broker=%s identity=%s topic_base=%s log_level=%s log_format=%s log_output=%s log_source=%t log_utc=%t log_color=%t modules=%v\n",
		cfg.Server.HubURL,
		cfg.Server.Broker,
		cfg.Server.Identity,
		cfg.Server.TopicBase,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
		cfg.Server.LogSource,
		cfg.Server.LogUTC,
		cfg.Server.LogColor,
		enabledModules(cfg),
	)
	return err
}

func embeddedConfig(cfg mrd.Config) embeddedmqtt.Config {
	clients := make([]embeddedmqtt.Credential, 0, len(cfg.Modules.EmbeddedMQTT.Clients))
	for _, c := range cfg.Modules.EmbeddedMQTT.Clients {
		clients = append(clients, embeddedmqtt.Credential{Username: c.Username, Password: c.Password})
	}
	return embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TopicBase:      cfg.Server.TopicBase,
		Clients:        clients,
		TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
		TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
		TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
	}
}

func embeddedBrokerURL(cfg mrd.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = defaultListen
	}
	tlsEnabled := cfg.Modules.EmbeddedMQTT.TLSCert != "" || cfg.Modules.EmbeddedMQTT.TLSKey != "" || cfg.Modules.EmbeddedMQTT.TLSCA != ""
	return embeddedmqtt.BrokerURL(listen, tlsEnabled)
}

func startEmbeddedBroker(ctx context.Context, cfg mrd.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()

	select {
	case <-mod.Ready():
	case err := <-errCh:
		if err == nil {
			err = errors.New("embedded mqtt stopped before ready")
		}
		return err
	case <-time.After(3 * time.Second):
		return fmt.Errorf("embedded mqtt not ready at %s", cfg.Modules.EmbeddedMQTT.Listen)
	}

	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()
	return nil
}
