package stream

import "github.com/thisyearnofear/IMONMYWAY-sub003/internal/session"

const (
	TypeStartSession   = "start-session"
	TypeUpdateLocation = "update-location"
	TypeSetDestination = "set-destination"
	TypeJoin           = "join"
	TypeWatch          = "watch"
)

// Message is the inbound envelope. Type selects which payload fields
// apply; unused fields stay zero.
type Message struct {
	Type        string          `json:"type"`
	Pace        *float64        `json:"pace,omitempty"`
	SharingID   string          `json:"sharingId,omitempty"`
	Latitude    float64         `json:"latitude,omitempty"`
	Longitude   float64         `json:"longitude,omitempty"`
	Active      *bool           `json:"active,omitempty"`
	Destination *session.LatLng `json:"destination,omitempty"`
}

// StartReply acknowledges a start-session request.
type StartReply struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	SharingID string `json:"sharingId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// WatchEvent is the server push carrying the latest session record.
type WatchEvent struct {
	Type         string          `json:"type"`
	LocationData session.Session `json:"locationData"`
}
