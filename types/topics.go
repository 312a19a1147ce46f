package types

import "presenter-fw/bus"

// Bus topics shared between services. Retained unless noted.

func TopicPresses() bus.Topic      { return bus.T("buttons", "presses") }
func TopicSample() bus.Topic       { return bus.T("env", "temperature") }
func TopicUpdateStatus() bus.Topic { return bus.T("dfu", "status") }
func TopicConfig(section string) bus.Topic {
	return bus.T("config", section)
}

// TopicSession carries session lifecycle notes (not retained).
func TopicSession() bus.Topic { return bus.T("session", "state") }

// SessionNote is published when a session starts or ends.
type SessionNote struct {
	Conn   uint64
	Active bool
	Reason string
}
