package embeddedmqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/pkg/remote"
)

// Config configures the embedded MQTT broker.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
	TopicBase      string
	Clients        []Credential
	TLSCA          string
	TLSCert        string
	TLSKey         string
}

// Credential is a presentation client login. Clients may send commands
// and read bridge topics but cannot publish state or events.
type Credential struct {
	Username string
	Password string
}

// Module runs an embedded MQTT broker for the bridge.
type Module struct {
	log    *zap.Logger
	server *mqtt.Server
	config Config
	ready  chan struct{}
}

// NewModule creates a new embedded broker module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:1883"
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = remote.BaseTopic
	}

	server, err := newServer(log, cfg)
	if err != nil {
		return nil, err
	}
	return &Module{log: log, server: server, config: cfg, ready: make(chan struct{})}, nil
}

// Ready is closed once the listener accepts connections.
func (m *Module) Ready() <-chan struct{} {
	return m.ready
}

// Run starts the embedded broker.
func (m *Module) Run(ctx context.Context) error {
	listenerConfig := listeners.Config{ID: "tcp-embedded", Address: m.config.Listen}
	if m.TLSEnabled() {
		tlsConfig, err := buildTLSConfig(m.config.TLSCA, m.config.TLSCert, m.config.TLSKey)
		if err != nil {
			return err
		}
		listenerConfig.TLSConfig = tlsConfig
	}

	listener := listeners.NewTCP(listenerConfig)
	if err := m.server.AddListener(listener); err != nil {
		return fmt.Errorf("embedded mqtt listen %s: %w", m.config.Listen, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.Serve()
	}()
	close(m.ready)
	if m.log != nil {
		m.log.Info("embedded mqtt listening", zap.String("addr", m.config.Listen), zap.String("topic_base", m.config.TopicBase))
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			m.server.Close()
			return err
		}
		<-ctx.Done()
	}
	m.server.Close()
	return nil
}

// TLSEnabled reports whether the listener serves TLS.
func (m *Module) TLSEnabled() bool {
	return m.config.TLSCert != "" || m.config.TLSKey != "" || m.config.TLSCA != ""
}

func newServer(log *zap.Logger, cfg Config) (*mqtt.Server, error) {
	options := &mqtt.Options{InlineClient: true, Logger: newSlogLogger(log)}
	server := mqtt.New(options)

	if cfg.AllowAnonymous {
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
		return server, nil
	}
	if cfg.Username == "" {
		return nil, errors.New("embedded mqtt requires allow_anonymous or username")
	}
	if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledgerFor(cfg)}); err != nil {
		return nil, err
	}
	return server, nil
}

func ledgerFor(cfg Config) *auth.Ledger {
	base := strings.TrimSuffix(cfg.TopicBase, "/")
	if base == "" {
		base = remote.BaseTopic
	}
	ledger := &auth.Ledger{
		Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
		ACL: auth.ACLRules{{Username: auth.RString(cfg.Username), Filters: auth.Filters{
			auth.RString(base + "/#"): auth.ReadWrite,
		}}},
	}
	for _, client := range cfg.Clients {
		if client.Username == "" {
			continue
		}
		ledger.Auth = append(ledger.Auth, auth.AuthRule{Username: auth.RString(client.Username), Password: auth.RString(client.Password), Allow: true})
		ledger.ACL = append(ledger.ACL, auth.ACLRule{Username: auth.RString(client.Username), Filters: auth.Filters{
			auth.RString(base + "/node/+/cmd"):      auth.ReadWrite,
			auth.RString(base + "/node/+/state"):    auth.ReadOnly,
			auth.RString(base + "/node/+/evt"):      auth.ReadOnly,
			auth.RString(base + "/node/+/presence"): auth.ReadOnly,
			auth.RString(base + "/reply/#"):         auth.ReadOnly,
		}})
	}
	return ledger
}

func buildTLSConfig(caPath, certPath, keyPath string) (*tls.Config, error) {
	if caPath == "" && certPath == "" && keyPath == "" {
		return nil, nil
	}

	config := &tls.Config{}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse CA bundle")
		}
		config.RootCAs = pool
	}

	if certPath != "" || keyPath != "" {
		if certPath == "" || keyPath == "" {
			return nil, errors.New("both tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// BrokerURL returns the broker URL for a listen address.
func BrokerURL(listen string, tlsEnabled bool) string {
	scheme := "mqtt"
	if tlsEnabled {
		scheme = "mqtts"
	}
	return fmt.Sprintf("%s://%s", scheme, listen)
}
