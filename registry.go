package janusproxy

import (
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

// Channels is the process wide set of channels, keyed by channel identity.
type Channels struct {
	mu        sync.RWMutex
	channels  map[string]*Channel
	onAdded   func(*Channel)
	onRemoved func(*Channel)
}

func NewChannels() *Channels {
	return &Channels{
		mu:       sync.RWMutex{},
		channels: make(map[string]*Channel),
	}
}

// Add registers channel unless an equal channel is already present. It returns false
// when nothing changed.
func (c *Channels) Add(channel *Channel) bool {
	c.mu.Lock()
	if _, ok := c.channels[channel.Key()]; ok {
		c.mu.Unlock()
		return false
	}

	c.channels[channel.Key()] = channel
	c.mu.Unlock()

	if c.onAdded != nil {
		c.onAdded(channel)
	}

	return true
}

func (c *Channels) Remove(channel *Channel) bool {
	c.mu.Lock()
	if _, ok := c.channels[channel.Key()]; !ok {
		c.mu.Unlock()
		return false
	}

	delete(c.channels, channel.Key())
	c.mu.Unlock()

	if c.onRemoved != nil {
		c.onRemoved(channel)
	}

	return true
}

func (c *Channels) Contains(channel *Channel) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.channels[channel.Key()]

	return ok
}

// FindByNameAndData returns nil when no channel has this identity.
func (c *Channels) FindByNameAndData(name string, data interface{}) *Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.channels[ChannelKey(name, data)]
}

func (c *Channels) Get(id string) (*Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, channel := range c.channels {
		if channel.ID == id {
			return channel, nil
		}
	}

	return nil, ErrChannelNotFound
}

func (c *Channels) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.channels)
}

// List returns a snapshot sorted by channel name then id.
func (c *Channels) List() []*Channel {
	c.mu.RLock()
	list := make([]*Channel, 0, len(c.channels))
	for _, channel := range c.channels {
		list = append(list, channel)
	}
	c.mu.RUnlock()

	slices.SortFunc(list, func(a, b *Channel) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})

	return list
}

// Streams is the process wide set of registered streams, keyed by stream id.
type Streams struct {
	mu        sync.RWMutex
	streams   map[string]*Stream
	onAdded   func(*Stream)
	onRemoved func(*Stream)
}

func NewStreams() *Streams {
	return &Streams{
		mu:      sync.RWMutex{},
		streams: make(map[string]*Stream),
	}
}

func (s *Streams) Add(stream *Stream) bool {
	s.mu.Lock()
	if existing, ok := s.streams[stream.ID]; ok && existing == stream {
		s.mu.Unlock()
		return false
	}

	s.streams[stream.ID] = stream
	s.mu.Unlock()

	if s.onAdded != nil {
		s.onAdded(stream)
	}

	return true
}

func (s *Streams) Remove(stream *Stream) bool {
	s.mu.Lock()
	if _, ok := s.streams[stream.ID]; !ok {
		s.mu.Unlock()
		return false
	}

	delete(s.streams, stream.ID)
	s.mu.Unlock()

	if s.onRemoved != nil {
		s.onRemoved(stream)
	}

	return true
}

func (s *Streams) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.streams[id]

	return ok
}

func (s *Streams) Get(id string) (*Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.streams[id]
	if !ok {
		return nil, ErrStreamNotFound
	}

	return stream, nil
}

// FindByChannel returns any registered stream bound to channel, or nil.
func (s *Streams) FindByChannel(channel *Channel) *Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stream := range s.streams {
		if stream.Channel != nil && stream.Channel.Key() == channel.Key() {
			return stream
		}
	}

	return nil
}

func (s *Streams) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.streams)
}

// List returns a snapshot sorted by stream id.
func (s *Streams) List() []*Stream {
	s.mu.RLock()
	list := make([]*Stream, 0, len(s.streams))
	for _, stream := range s.streams {
		list = append(list, stream)
	}
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b *Stream) int {
		return strings.Compare(a.ID, b.ID)
	})

	return list
}

// Registry owns the shared channel and stream stores. Channel admission and stream
// release run under one lock so the reference check and the channel removal that
// follows it cannot interleave with another release or admission.
type Registry struct {
	Channels   *Channels
	Streams    *Streams
	mu         sync.Mutex
	extMu      sync.RWMutex
	extensions []IRegistryExtension
}

func NewRegistry() *Registry {
	r := &Registry{
		Channels:   NewChannels(),
		Streams:    NewStreams(),
		extensions: make([]IRegistryExtension, 0),
	}

	r.Channels.onAdded = func(c *Channel) {
		r.forEachExtension(func(ext IRegistryExtension) { ext.OnChannelAdded(r, c) })
	}
	r.Channels.onRemoved = func(c *Channel) {
		r.forEachExtension(func(ext IRegistryExtension) { ext.OnChannelRemoved(r, c) })
	}
	r.Streams.onAdded = func(s *Stream) {
		r.forEachExtension(func(ext IRegistryExtension) { ext.OnStreamAdded(r, s) })
	}
	r.Streams.onRemoved = func(s *Stream) {
		r.forEachExtension(func(ext IRegistryExtension) { ext.OnStreamRemoved(r, s) })
	}

	return r
}

func (r *Registry) AddExtension(extension IRegistryExtension) {
	r.extMu.Lock()
	defer r.extMu.Unlock()

	r.extensions = append(r.extensions, extension)
}

func (r *Registry) forEachExtension(f func(IRegistryExtension)) {
	r.extMu.RLock()
	extensions := append([]IRegistryExtension(nil), r.extensions...)
	r.extMu.RUnlock()

	for _, ext := range extensions {
		f(ext)
	}
}

// ResolveChannel returns the registered channel for (name, data), registering a new
// one on first use. This is the only place channels are created for streams.
func (r *Registry) ResolveChannel(name string, data interface{}) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if channel := r.Channels.FindByNameAndData(name, data); channel != nil {
		return channel
	}

	channel := NewChannel(name, data)
	r.Channels.Add(channel)

	return channel
}

// AddChannel registers channel unless an equal one exists.
func (r *Registry) AddChannel(channel *Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.Channels.Add(channel)
}

func (r *Registry) AddStream(stream *Stream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.Streams.Add(stream)
}

// RemoveStream unregisters stream without touching its channel.
func (r *Registry) RemoveStream(stream *Stream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.Streams.Remove(stream)
}

// ReleaseStream unregisters stream if it is still registered, then drops its channel
// when no registered stream references it anymore. Safe to call repeatedly.
func (r *Registry) ReleaseStream(stream *Stream) {
	if stream == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Streams.Has(stream.ID) {
		r.Streams.Remove(stream)
	}

	channel := stream.Channel
	if channel == nil {
		return
	}

	if r.Streams.FindByChannel(channel) == nil && r.Channels.Contains(channel) {
		r.Channels.Remove(channel)
	}
}
