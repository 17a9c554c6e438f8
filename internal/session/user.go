package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is the identity of the signed-in person
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is the position of the session in its lifecycle
type State int

const (
	Anonymous State = iota
	Authenticating
	// Unverified is a session restored from disk whose token has not been checked yet
	Unverified
	Authenticated
)

var stateNames = map[State]string{
	Anonymous:      "anonymous",
	Authenticating: "authenticating",
	Unverified:     "unverified",
	Authenticated:  "authenticated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalJSON encodes the state by name
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Session is a snapshot of the store
type Session struct {
	State State  `json:"state"`
	User  *User  `json:"user"`
	Token string `json:"-"`
}
