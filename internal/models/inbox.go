package models

import (
	"bytes"
	"encoding/json"
)

// InboxItem is a dispatch-pushed proposal for a new stop. The payload is
// kept verbatim so exports hand it back untouched.
type InboxItem struct {
	ID         string          `json:"id"`
	From       string          `json:"from"`
	ReceivedAt string          `json:"receivedAt"`
	Title      string          `json:"title"`
	Hint       string          `json:"hint"`
	Payload    json.RawMessage `json:"payload"`
}

// InboxPayload is the typed view of an inbox payload. Newer dispatch tools
// send nested site/schedule/work sections, older ones send flat fields plus
// saltSpec/shovelSpec and a free-text "Open HH:MM, Close HH:MM" window.
type InboxPayload struct {
	RouteNumber   FlexString `json:"routeNumber,omitempty"`
	Name          string     `json:"name,omitempty"`
	SlangName     string     `json:"slangName,omitempty"`
	Address       string     `json:"address,omitempty"`
	City          string     `json:"city,omitempty"`
	State         string     `json:"state,omitempty"`
	Zip           string     `json:"zip,omitempty"`
	SheetImageSrc string     `json:"sheetImageSrc,omitempty"`
	SpecialNotes  string     `json:"specialNotes,omitempty"`
	Assist        bool       `json:"assist,omitempty"`

	ServiceDays         string `json:"serviceDays,omitempty"`
	FirstCompletionTime string `json:"firstCompletionTime,omitempty"`
	TimeOpen            string `json:"timeOpen,omitempty"`
	TimeClosed          string `json:"timeClosed,omitempty"`
	Window              string `json:"window,omitempty"`

	SaltSpec   string `json:"saltSpec,omitempty"`
	ShovelSpec string `json:"shovelSpec,omitempty"`

	Site     *SiteInput     `json:"site,omitempty"`
	Schedule *ScheduleInput `json:"schedule,omitempty"`
	Sheet    *SheetInput    `json:"sheet,omitempty"`
	Work     *WorkInput     `json:"work,omitempty"`
}

// DecodePayload parses the raw payload. Fields of the wrong type are skipped;
// a missing or unparseable payload yields an empty InboxPayload.
func (i InboxItem) DecodePayload() InboxPayload {
	var p InboxPayload
	raw := bytes.TrimSpace(i.Payload)
	if len(raw) == 0 {
		return p
	}
	if err := DecodeLenient(raw, &p); err != nil {
		return InboxPayload{}
	}
	return p
}
