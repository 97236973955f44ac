package status

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "e133/device"

// Topics builds the topics of one device.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Status returns the online/offline topic.
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// Endpoint returns the presence topic of an endpoint.
//
// Example: e133/device/endpoints/3
func (t Topics) Endpoint(id uint16) string {
	return fmt.Sprintf("%s/endpoints/%d", t.prefix(), id)
}

// Events returns the endpoint event topic.
func (t Topics) Events() string {
	return t.prefix() + "/events"
}

// Stats returns the session statistics topic.
func (t Topics) Stats() string {
	return t.prefix() + "/stats"
}
