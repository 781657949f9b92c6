package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ctalara/internal/core"
)

// ReportRequestMessage asks a worker to render the report files of one
// selection. It carries the whole selection so the worker needs no session.
type ReportRequestMessage struct {
	ID             string    `json:"id"`
	Countries      []string  `json:"countries"`
	YearFrom       int       `json:"year_from"`
	YearTo         int       `json:"year_to"`
	Views          []string  `json:"views"`
	ProfileCountry string    `json:"profile_country"`
	CompareA       string    `json:"compare_a"`
	CompareB       string    `json:"compare_b"`
	DoseFactor     float64   `json:"dose_factor"`
	RequestedAt    time.Time `json:"requested_at"`
}

// NewReportRequestMessage captures sel under the given report id.
func NewReportRequestMessage(id string, sel core.Selection) *ReportRequestMessage {
	msg := &ReportRequestMessage{
		ID:             id,
		Countries:      append([]string(nil), sel.Countries...),
		YearFrom:       sel.Years.From,
		YearTo:         sel.Years.To,
		ProfileCountry: sel.ProfileCountry,
		CompareA:       sel.CompareA,
		CompareB:       sel.CompareB,
		DoseFactor:     sel.DoseFactor,
		RequestedAt:    time.Now().UTC(),
	}
	for _, v := range core.AllViews {
		if sel.Views.Enabled(v) {
			msg.Views = append(msg.Views, string(v))
		}
	}
	return msg
}

// Selection rebuilds the selection carried by the message. Unknown view
// names are ignored.
func (m *ReportRequestMessage) Selection() core.Selection {
	views := core.ViewSet{}
	for _, name := range m.Views {
		if v := core.View(name); v.Valid() {
			views[v] = true
		}
	}
	return core.Selection{
		Countries:      append([]string(nil), m.Countries...),
		Years:          core.YearRange{From: m.YearFrom, To: m.YearTo},
		Views:          views,
		ProfileCountry: m.ProfileCountry,
		CompareA:       m.CompareA,
		CompareB:       m.CompareB,
		DoseFactor:     m.DoseFactor,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON decodes a message and checks its id is a UUID,
// since the id names the report directory.
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("report request without id")
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, fmt.Errorf("report request id %q: %w", msg.ID, err)
	}
	return &msg, nil
}
