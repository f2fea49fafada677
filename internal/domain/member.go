package domain

// ConnID identifies one live signaling connection. It never outlives the socket.
type ConnID string

// Participant is a connection's seat in a consultation room.
// No transport or lifecycle logic here.
type Participant struct {
	Conn        ConnID     `json:"connectionId"`
	Role        Role       `json:"role"`
	DisplayName string     `json:"displayName"`
	ExternalID  ExternalID `json:"externalId,omitempty"`
}
