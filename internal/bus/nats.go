package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	wis "wis-backend"
)

const (
	SubjectDiagnosisCompleted = "wis.diagnosis.completed"
	SubjectHistoryCleared     = "wis.history.cleared"
)

// DiagnosisEvent is published after every diagnosis run.
type DiagnosisEvent struct {
	SessionRef string            `json:"sessionRef,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Record     wis.HistoryRecord `json:"record"`
	Status     wis.Severity      `json:"status"`
	Findings   []wis.Finding     `json:"findings"`
}

type HistoryClearedEvent struct {
	SessionRef string    `json:"sessionRef,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("wis-backend"))
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

func (p *Publisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}
