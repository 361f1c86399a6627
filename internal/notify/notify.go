// Package notify publishes analysis-complete events over MQTT so other
// systems can react to freshly analyzed audio without polling the API.
package notify

import (
	"encoding/json"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/segment"
)

// Publisher sends completion events to a single MQTT topic.
type Publisher struct {
	conn      mqtt.Client
	topic     string
	connected atomic.Bool
	log       zerolog.Logger
}

type Options struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
	Log       zerolog.Logger
}

// event is the published payload for one completed analysis.
type event struct {
	Source      string            `json:"source"`
	JobID       string            `json:"job_id"`
	Segments    []segment.Segment `json:"segments"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Connect establishes the broker connection. The client auto-reconnects;
// events published while disconnected are dropped.
func Connect(opts Options) (*Publisher, error) {
	p := &Publisher{
		topic: opts.Topic,
		log:   opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	p.conn = mqtt.NewClient(clientOpts)
	token := p.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return p, nil
}

// AnalysisCompleted publishes one completion event. Publish failures are
// logged, never propagated: events are advisory, the analysis already
// succeeded.
func (p *Publisher) AnalysisCompleted(source, jobID string, segs []segment.Segment) {
	payload, err := json.Marshal(event{
		Source:      source,
		JobID:       jobID,
		Segments:    segs,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		p.log.Error().Err(err).Str("job_id", jobID).Msg("marshal completion event")
		return
	}

	token := p.conn.Publish(p.topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.log.Warn().Err(err).Str("job_id", jobID).Msg("publish completion event failed")
		return
	}
	p.log.Debug().Str("job_id", jobID).Int("segments", len(segs)).Msg("completion event published")
}

func (p *Publisher) onConnect(_ mqtt.Client) {
	p.connected.Store(true)
	p.log.Info().Str("topic", p.topic).Msg("mqtt connected")
}

func (p *Publisher) onConnectionLost(_ mqtt.Client, err error) {
	p.connected.Store(false)
	p.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

func (p *Publisher) Close() {
	p.log.Info().Msg("disconnecting mqtt publisher")
	p.conn.Disconnect(1000)
}
