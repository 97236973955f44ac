// Package status publishes device status to an MQTT broker.
//
// A Reporter observes the endpoint registry and the TCP session statistics
// and publishes them as JSON under a topic prefix:
//
//	<prefix>/status              online/offline (retained, also the will)
//	<prefix>/endpoints/<id>      endpoint presence (retained, cleared on removal)
//	<prefix>/events              endpoint added/removed events
//	<prefix>/stats               TCP session statistics (retained)
//
// The MQTT connection itself is provided by Client, a thin wrapper around
// paho.mqtt.golang. Reporter only needs a Publisher, so tests can run without
// a broker.
package status
