package janusproxy

import (
	"encoding/json"
	"fmt"
)

// Channel is a logical room or feed. Two channels are the same channel when their names
// are equal and their data encode to the same canonical JSON, see ChannelKey. Channels
// must be built with NewChannel.
type Channel struct {
	ID   string
	Name string
	Data interface{}

	key string
}

// NewChannel builds an unregistered channel for name and data.
func NewChannel(name string, data interface{}) *Channel {
	return &Channel{
		ID:   GenerateID(),
		Name: name,
		Data: data,
		key:  ChannelKey(name, data),
	}
}

// ChannelKey is the identity of a (name, data) pair. Data is compared by its JSON
// encoding: object key order does not matter, JSON types do ("1" and 1 differ), and
// nil equals JSON null. Data that cannot be encoded falls back to its %#v rendering.
func ChannelKey(name string, data interface{}) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		return name + "\x00" + fmt.Sprintf("%#v", data)
	}

	return name + "\x00" + string(encoded)
}

// Key is the identity computed by NewChannel. It never changes after construction.
func (c *Channel) Key() string {
	return c.key
}

func (c *Channel) String() string {
	return fmt.Sprintf("channel %s (%s)", c.Name, c.ID)
}
