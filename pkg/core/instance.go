package core

import (
	"fmt"
	"strings"
)

// InstanceID identifies a watched store instance. In practice it is the
// instance's port, but it is only ever compared for equality.
type InstanceID string

func (id InstanceID) String() string { return string(id) }

// ValidateInstanceID rejects ids that cannot travel over the wire protocol:
// control requests are space separated and ingest messages end the id at
// the first ')'.
func ValidateInstanceID(id InstanceID) error {
	s := string(id)
	if s == "" {
		return fmt.Errorf("instance id is empty")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return fmt.Errorf("instance id %q contains whitespace", s)
	}
	if strings.ContainsAny(s, "()") {
		return fmt.Errorf("instance id %q contains parentheses", s)
	}
	return nil
}

// Record is one normalized command observed on an instance.
type Record struct {
	Instance InstanceID `json:"instance"`
	Body     string     `json:"body"`
}
