package session

import "time"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Session is one publisher's live tracking state. Latitude/Longitude of
// (0,0) mean no fix has been reported yet. ETA stays null until both a
// fix and a destination are known.
type Session struct {
	ID          string    `json:"id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Path        []LatLng  `json:"path"`
	Active      bool      `json:"active"`
	Pace        float64   `json:"pace"`
	Destination *LatLng   `json:"destination"`
	ETA         *float64  `json:"eta"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Fields is a partial update. Nil pointers leave the stored value
// untouched.
type Fields struct {
	Latitude    *float64
	Longitude   *float64
	Active      *bool
	Destination *LatLng
	ETA         *float64
}

func (s *Session) clone() Session {
	out := *s
	out.Path = make([]LatLng, len(s.Path))
	copy(out.Path, s.Path)
	if s.Destination != nil {
		dest := *s.Destination
		out.Destination = &dest
	}
	if s.ETA != nil {
		eta := *s.ETA
		out.ETA = &eta
	}
	return out
}
