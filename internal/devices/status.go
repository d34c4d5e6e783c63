package devices

import "time"

type TempStatus struct {
	Name string  `json:"name"`
	Temp float64 `json:"temp"`
}

type ChannelStatus struct {
	Name string   `json:"name"`
	Rpm  *int     `json:"rpm,omitempty"`
	Duty *float64 `json:"duty,omitempty"`
}

// StatusSnapshot is one timestamped reading of a device.
// Snapshots are values and must never be modified after creation.
type StatusSnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Temps     []TempStatus    `json:"temps"`
	Channels  []ChannelStatus `json:"channels"`
}

func (s StatusSnapshot) Temp(name string) (float64, bool) {
	for _, temp := range s.Temps {
		if temp.Name == name {
			return temp.Temp, true
		}
	}
	return 0, false
}

func (s StatusSnapshot) Channel(name string) (ChannelStatus, bool) {
	for _, channel := range s.Channels {
		if channel.Name == name {
			return channel, true
		}
	}
	return ChannelStatus{}, false
}

// CarriedForward returns a copy of this snapshot, stamped with the given timestamp.
func (s StatusSnapshot) CarriedForward(timestamp time.Time) StatusSnapshot {
	temps := make([]TempStatus, len(s.Temps))
	copy(temps, s.Temps)
	channels := make([]ChannelStatus, len(s.Channels))
	copy(channels, s.Channels)
	return StatusSnapshot{
		Timestamp: timestamp,
		Temps:     temps,
		Channels:  channels,
	}
}
