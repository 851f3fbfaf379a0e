// Package report publishes mailbox exchanges to an MQTT broker so a bench of
// stations can be watched from one place.
package report

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"s3mu/host/client"
)

// Record is the JSON document published per exchange
type Record struct {
	Station    string    `json:"station"`
	Time       time.Time `json:"time"`
	Command    string    `json:"command"`
	Sent       []uint32  `json:"sent,omitempty"`
	Status     string    `json:"status"`
	Code       uint8     `json:"code"`
	Header     uint32    `json:"header,omitempty"`
	Words      []uint32  `json:"words,omitempty"`
	DurationUS int64     `json:"duration_us"`
	Error      string    `json:"error,omitempty"`
}

// Publisher is the part of paho.Client the reporter needs
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Reporter turns client exchanges into MQTT messages
type Reporter struct {
	pub     Publisher
	station string
	topic   string
	closer  func()
}

// ConnectTimeout bounds the initial broker connection
const ConnectTimeout = 5 * time.Second

var errConnectTimeout = errors.New("report: broker connect timed out")

// ClientOptionsFromURL creates ClientOptions from URL.
// The URL path, if any, is returned as the topic prefix.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	var server string
	if u.Scheme == "" || u.Scheme == "mqtt" {
		server = "tcp"
	} else {
		server = u.Scheme
	}
	server += "://" + u.Host

	topicPrefix := strings.TrimPrefix(u.Path, "/")

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(ConnectTimeout)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}

	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}

	return opts, topicPrefix, nil
}

// StationID identifies this host; it is stable across runs and does not expose
// the raw machine id.
func StationID() string {
	id, err := machineid.ProtectedID("s3mu")
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable, using hostname: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}

// Connect dials the broker at brokerURL.
// prefix is used when the URL carries no path.
func Connect(brokerURL, prefix string) (*Reporter, error) {
	opts, urlPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if urlPrefix != "" {
		prefix = urlPrefix
	}

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(ConnectTimeout) {
		return nil, errConnectTimeout
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	glog.Infof("reporting to %s", brokerURL)

	r := New(c, prefix, StationID())
	r.closer = func() { c.Disconnect(250) }
	return r, nil
}

// New creates a reporter publishing through pub
func New(pub Publisher, prefix, station string) *Reporter {
	return &Reporter{
		pub:     pub,
		station: station,
		topic:   Topic(prefix, station),
	}
}

// Topic returns "<prefix>/<station>/mailbox"
func Topic(prefix, station string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return station + "/mailbox"
	}
	return prefix + "/" + station + "/mailbox"
}

// Topic returns the topic this reporter publishes on
func (r *Reporter) Topic() string { return r.topic }

// Observe publishes one exchange; it has the signature of client.Observer
func (r *Reporter) Observe(ex client.Exchange) {
	rec := Record{
		Station:    r.station,
		Time:       time.Now().UTC(),
		Command:    ex.Command,
		Sent:       ex.Sent,
		Status:     ex.Status.String(),
		Code:       uint8(ex.Status),
		Header:     uint32(ex.Header),
		Words:      ex.Words,
		DurationUS: ex.Duration.Microseconds(),
	}
	if ex.Err != nil {
		rec.Error = ex.Err.Error()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		glog.Errorf("encode report: %v", err)
		return
	}
	token := r.pub.Publish(r.topic, 0, false, payload)
	go func() {
		if token.WaitTimeout(ConnectTimeout) && token.Error() != nil {
			glog.Warningf("publish %s: %v", r.topic, token.Error())
		}
	}()
}

// Close disconnects from the broker
func (r *Reporter) Close() error {
	if r.closer != nil {
		r.closer()
	}
	return nil
}
