// Package wearable mirrors the latest glucose reading to a companion
// device channel. Delivery is best effort: callers log publish errors
// and move on, a sync run never fails because the mirror is down.
package wearable

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/config"
	"github.com/libresync/libresync/internal/logger"
	"github.com/libresync/libresync/internal/models"
)

// Mirror pushes a measurement to the companion device channel.
type Mirror interface {
	Publish(m *models.GlucoseMeasurement) error
	Close()
}

// payload is the wire form written to the wearable channel. The
// timestamp carries the raw factory string so the device renders it
// without re-parsing.
type payload struct {
	Glucose    float64 `json:"glucose"`
	TrendArrow int     `json:"trendArrow"`
	Color      int     `json:"color"`
	Units      int     `json:"units"`
	Timestamp  string  `json:"timestamp"`
}

// NATSMirror publishes readings over a NATS subject.
type NATSMirror struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
	log     *zap.Logger
}

// NewNATSMirror connects to the configured NATS server. The connection
// retries in the background, so a mirror created while the server is
// down still becomes usable once it comes up.
func NewNATSMirror(cfg config.WearableConfig, l *logger.Logger) (*NATSMirror, error) {
	log := l.Log
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("wearable channel disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("wearable channel reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to wearable channel: %w", err)
	}

	return &NATSMirror{
		nc:      nc,
		subject: cfg.Subject,
		timeout: cfg.Timeout,
		log:     log,
	}, nil
}

// Publish pushes the measurement and waits, bounded by the configured
// timeout, for the server to accept it.
func (m *NATSMirror) Publish(gm *models.GlucoseMeasurement) error {
	body, err := json.Marshal(payload{
		Glucose:    gm.Value,
		TrendArrow: gm.TrendArrow,
		Color:      gm.MeasurementColor,
		Units:      gm.GlucoseUnits,
		Timestamp:  gm.FactoryTimestamp,
	})
	if err != nil {
		return fmt.Errorf("encode wearable payload: %w", err)
	}

	if err := m.nc.Publish(m.subject, body); err != nil {
		return fmt.Errorf("publish wearable payload: %w", err)
	}
	if err := m.nc.FlushTimeout(m.timeout); err != nil {
		return fmt.Errorf("flush wearable payload: %w", err)
	}
	return nil
}

// Close drains the connection.
func (m *NATSMirror) Close() {
	m.nc.Close()
}

// NopMirror is used when mirroring is disabled.
type NopMirror struct{}

func (NopMirror) Publish(*models.GlucoseMeasurement) error { return nil }

func (NopMirror) Close() {}
