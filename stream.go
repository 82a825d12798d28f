package janusproxy

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// Stream is an active media session bound to one channel. It is owned by the plugin
// that created it and registered in Streams while the media API knows about it.
type Stream struct {
	ID      string
	Channel *Channel
	Plugin  Plugin
	Conn    Conn
	Start   time.Time

	mu sync.RWMutex
	// m-line kinds of the offer that produced the stream, when known
	media []string
}

func NewStream(channel *Channel, plugin Plugin, conn Conn) *Stream {
	return &Stream{
		ID:      GenerateUUID(),
		Channel: channel,
		Plugin:  plugin,
		Conn:    conn,
		Start:   time.Now(),
	}
}

func (s *Stream) ChannelName() string {
	if s.Channel == nil {
		return ""
	}

	return s.Channel.Name
}

func (s *Stream) String() string {
	return fmt.Sprintf("stream %s (%s)", s.ID, s.ChannelName())
}

// Media returns a copy of the stream's m-line kinds.
func (s *Stream) Media() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.media)
}

func (s *Stream) SetMedia(kinds []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.media = slices.Clone(kinds)
}
