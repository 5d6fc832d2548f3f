/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Comcast/surface/control"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTCouplings is a Couplings for an MQTT broker.
//
// Variable values arrive on "<Prefix>/<scope>/<name>".  Any JSON
// payload is the value.  A payload that isn't JSON is a string.
//
// Msgs (JSON) arrive on "<Prefix>/cmd".
//
// Results are published on "<Prefix>/controls/<id>/style", and
// errors are published on "<Prefix>/errors".
type MQTTCouplings struct {
	Client  mqtt.Client
	Prefix  string
	QoS     byte
	Retain  bool
	Quiesce uint

	// InTimeout bounds the wait for the engine to accept an
	// in-bound message.
	InTimeout time.Duration

	// Verbose turns on logging.
	Verbose bool

	JSONStore

	incoming chan interface{}
	outbound chan *Result
	done     chan bool
}

// NewMQTTCouplings makes couplings for the client, which should not
// be connected yet.  Use the couplings' Handler as the client's
// default publish handler (see mqtt.ClientOptions).
func NewMQTTCouplings(client mqtt.Client, prefix string) *MQTTCouplings {
	return &MQTTCouplings{
		Client:    client,
		Prefix:    strings.TrimSuffix(prefix, "/"),
		Quiesce:   100,
		InTimeout: 5 * time.Second,
		incoming:  make(chan interface{}),
		outbound:  make(chan *Result),
		done:      make(chan bool),
	}
}

func (c *MQTTCouplings) logf(format string, args ...interface{}) {
	if c.Verbose {
		log.Printf("MQTTCouplings."+format, args...)
	}
}

// CmdTopic is the topic for Msgs.
func (c *MQTTCouplings) CmdTopic() string {
	return c.Prefix + "/cmd"
}

// StyleTopic is the topic for a control's Results.
func (c *MQTTCouplings) StyleTopic(controlId string) string {
	return c.Prefix + "/controls/" + controlId + "/style"
}

// ErrorTopic is the topic for Results that carry only errors.
func (c *MQTTCouplings) ErrorTopic() string {
	return c.Prefix + "/errors"
}

// AsMsg interprets an in-bound MQTT message.  Returns nil for topics
// that aren't ours.
func (c *MQTTCouplings) AsMsg(topic string, payload []byte) *Msg {
	if topic == c.CmdTopic() {
		var m Msg
		if err := json.Unmarshal(payload, &m); err != nil {
			log.Printf("Couldn't JSON-parse command: %s", payload)
			return nil
		}
		return &m
	}

	rest := strings.TrimPrefix(topic, c.Prefix+"/")
	if rest == topic {
		return nil
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil
	}
	switch parts[0] {
	case "controls", "errors":
		// Our own output.
		return nil
	}

	var x interface{}
	if err := json.Unmarshal(payload, &x); err != nil {
		x = string(payload)
	}
	return &Msg{
		Variables: map[string]interface{}{
			parts[0] + ":" + parts[1]: x,
		},
	}
}

func (c *MQTTCouplings) consume(ctx context.Context, topic string, payload []byte) {
	m := c.AsMsg(topic, payload)
	if m == nil {
		return
	}

	to := time.NewTimer(c.InTimeout)
	defer to.Stop()

	select {
	case <-ctx.Done():
		log.Printf("MQTTCouplings not forwarding due to ctx.Done()")
	case c.incoming <- m:
		c.logf("consume forwarded %s %s", topic, payload)
	case <-to.C:
		log.Printf("MQTTCouplings not forwarding due to stall ('%s','%s')", topic, payload)
	}
}

// Handler returns a Paho publish handler, which is used to handle
// messages sent to us from the MQTT broker due to our
// subscriptions.
func (c *MQTTCouplings) Handler(ctx context.Context) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		c.consume(ctx, msg.Topic(), msg.Payload())
	}
}

// Start creates the MQTT session and subscribes to "<Prefix>/#".
func (c *MQTTCouplings) Start(ctx context.Context) error {
	log.Printf("Attempting to connect to broker")
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("Connected to broker")

	topic := c.Prefix + "/#"
	if t := c.Client.Subscribe(topic, c.QoS, c.Handler(ctx)); t.Wait() && t.Error() != nil {
		return t.Error()
	}
	log.Printf("Subscribed to %s (%d)", topic, c.QoS)

	go c.outLoop(ctx)

	return nil
}

// IO returns the channels that the engine uses.
func (c *MQTTCouplings) IO(ctx context.Context) (chan interface{}, chan *Result, chan bool, error) {
	return c.incoming, c.outbound, c.done, nil
}

// Read returns the controls in the JSONStore's input file (if any).
func (c *MQTTCouplings) Read(ctx context.Context) ([]*control.Data, error) {
	return c.JSONStore.Read(ctx)
}

// Stop disconnects.
func (c *MQTTCouplings) Stop(ctx context.Context) error {
	c.Client.Disconnect(c.Quiesce)
	return c.JSONStore.Stop(ctx, false)
}

// Topic returns the topic and payload for a Result.
func (c *MQTTCouplings) Topic(r *Result) (string, []byte, error) {
	topic := c.ErrorTopic()
	if r.ControlId != "" {
		topic = c.StyleTopic(r.ControlId)
	}
	js, err := json.Marshal(r)
	return topic, js, err
}

// outLoop forwards Results to the MQTT broker.
func (c *MQTTCouplings) outLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-c.outbound:
			if r == nil {
				return
			}
			c.Update(r)
			topic, js, err := c.Topic(r)
			if err != nil {
				log.Printf("Failed to marshal %#v", r)
				continue
			}
			c.logf("outLoop publishing %s %s", topic, js)
			token := c.Client.Publish(topic, c.QoS, c.Retain, js)
			token.Wait()
			if err := token.Error(); err != nil {
				log.Printf("Publish error: %s", err)
			}
		}
	}
}

// ParseTopic splits an optional ":qos" suffix from a topic.
func ParseTopic(s string) (string, byte) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return s, 0
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 || 2 < n {
		return s, 0
	}
	return s[:i], byte(n)
}
