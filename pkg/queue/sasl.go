package queue

import "github.com/confluentinc/confluent-kafka-go/v2/kafka"

// SASLConfig holds optional SASL credentials for the brokers.
type SASLConfig struct {
	Username         string
	Password         string
	Mechanism        string // e.g. PLAIN, SCRAM-SHA-512
	SecurityProtocol string // e.g. SASL_SSL
}

func (c SASLConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

// ApplyToConfigMap sets the SASL properties on cm when credentials are set.
func (c SASLConfig) ApplyToConfigMap(cm *kafka.ConfigMap) {
	if !c.Enabled() {
		return
	}
	mechanism := c.Mechanism
	if mechanism == "" {
		mechanism = "PLAIN"
	}
	protocol := c.SecurityProtocol
	if protocol == "" {
		protocol = "SASL_SSL"
	}
	_ = cm.SetKey("sasl.username", c.Username)
	_ = cm.SetKey("sasl.password", c.Password)
	_ = cm.SetKey("sasl.mechanisms", mechanism)
	_ = cm.SetKey("security.protocol", protocol)
}
