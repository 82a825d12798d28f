package janusproxy

import (
	"encoding/json"
	"fmt"
)

// Gateway message discriminators carried in the `janus` field.
const (
	KindCreate   = "create"
	KindAttach   = "attach"
	KindMessage  = "message"
	KindEvent    = "event"
	KindWebrtcUp = "webrtcup"
	KindHangup   = "hangup"
	KindDetach   = "detach"
	KindSuccess  = "success"
	KindAck      = "ack"
	KindError    = "error"
)

// Message is a gateway protocol message as decoded from JSON. Field names are kept
// untouched so a message can be relayed exactly as received.
type Message map[string]interface{}

// DecodeMessage parses a raw gateway frame.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodingMessage, err)
	}

	if m == nil {
		return nil, fmt.Errorf("%w: not an object", ErrDecodingMessage)
	}

	return m, nil
}

func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingMessage, err)
	}

	return data, nil
}

func (m Message) Janus() string {
	return m.stringField("janus")
}

func (m Message) Transaction() string {
	return m.stringField("transaction")
}

// Body returns the plugin request body of a `message`, or nil.
func (m Message) Body() map[string]interface{} {
	return m.objectField("body")
}

// Request is body.request of a `message`.
func (m Message) Request() string {
	if body := m.Body(); body != nil {
		if request, ok := body["request"].(string); ok {
			return request
		}
	}

	return ""
}

// BodyValue returns a request-specific field from the body, such as `id` or `channel_data`.
func (m Message) BodyValue(key string) interface{} {
	if body := m.Body(); body != nil {
		return body[key]
	}

	return nil
}

// BodyString renders a body field as a string. Numeric room ids are formatted
// without a fractional part.
func (m Message) BodyString(key string) string {
	switch v := m.BodyValue(key).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// PluginData returns plugindata.data of a plugin response or event, or nil.
func (m Message) PluginData() map[string]interface{} {
	pluginData := m.objectField("plugindata")
	if pluginData == nil {
		return nil
	}

	data, _ := pluginData["data"].(map[string]interface{})

	return data
}

// Data returns the `data` object of a gateway success response.
func (m Message) Data() map[string]interface{} {
	return m.objectField("data")
}

func (m Message) Jsep() map[string]interface{} {
	return m.objectField("jsep")
}

func (m Message) SessionID() uint64 {
	return m.idField("session_id")
}

func (m Message) HandleID() uint64 {
	return m.idField("handle_id")
}

// Sender is the handle id the gateway attaches to asynchronous plugin events.
func (m Message) Sender() uint64 {
	return m.idField("sender")
}

// IsSuccess reports whether m is a positive gateway answer. Plugin requests are answered
// by `success` (synchronous) or `event` (asynchronous); either one is a rejection when its
// plugin data carries `error` or `error_code`. An event without plugin data is not an answer.
func (m Message) IsSuccess() bool {
	data := m.PluginData()

	switch m.Janus() {
	case KindSuccess:
		return !hasPluginError(data)
	case KindEvent:
		return data != nil && !hasPluginError(data)
	default:
		return false
	}
}

func hasPluginError(data map[string]interface{}) bool {
	if data == nil {
		return false
	}

	_, hasError := data["error"]
	_, hasCode := data["error_code"]

	return hasError || hasCode
}

func (m Message) stringField(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func (m Message) objectField(key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}

	return nil
}

func (m Message) idField(key string) uint64 {
	return idValue(m[key])
}

func idValue(value interface{}) uint64 {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0
		}
		return uint64(n)
	case uint64:
		return v
	case int:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case int64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	default:
		return 0
	}
}
