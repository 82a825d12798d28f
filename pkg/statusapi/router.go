// Package statusapi exposes the proxy registries and metrics over HTTP.
package statusapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	janusproxy "github.com/samespace/janus-proxy"
)

type ChannelView struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

type StreamView struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	PluginType  string    `json:"plugin_type,omitempty"`
	Media       []string  `json:"media,omitempty"`
	Start       time.Time `json:"start"`
}

type PluginView struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`
}

type ConnectionView struct {
	ID      string                 `json:"id"`
	Meta    map[string]interface{} `json:"meta"`
	Plugins []PluginView           `json:"plugins"`
}

type StatusView struct {
	Name        string        `json:"name"`
	Connections int           `json:"connections"`
	Channels    []ChannelView `json:"channels"`
	Streams     []StreamView  `json:"streams"`
}

type routes struct {
	proxy *janusproxy.Proxy
}

// NewRouter mounts the status endpoints on handler. A nil gatherer leaves /metrics out.
func NewRouter(handler *gin.Engine, proxy *janusproxy.Proxy, gatherer prometheus.Gatherer) {
	r := &routes{proxy: proxy}

	handler.GET("/status", r.status)
	handler.GET("/connections", r.connections)
	handler.GET("/channels", r.channels)
	handler.GET("/streams", r.streams)
	handler.GET("/streams/:id", r.stream)

	if gatherer != nil {
		handler.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

func (r *routes) status(c *gin.Context) {
	registry := r.proxy.Registry()

	c.JSON(http.StatusOK, StatusView{
		Name:        r.proxy.Name(),
		Connections: r.proxy.ConnectionsCount(),
		Channels:    channelViews(registry.Channels.List()),
		Streams:     streamViews(registry.Streams.List()),
	})
}

func (r *routes) connections(c *gin.Context) {
	conns := r.proxy.Connections()
	views := make([]ConnectionView, 0, len(conns))
	for _, conn := range conns {
		views = append(views, connectionView(conn))
	}

	c.JSON(http.StatusOK, views)
}

func (r *routes) channels(c *gin.Context) {
	c.JSON(http.StatusOK, channelViews(r.proxy.Registry().Channels.List()))
}

func (r *routes) streams(c *gin.Context) {
	c.JSON(http.StatusOK, streamViews(r.proxy.Registry().Streams.List()))
}

func (r *routes) stream(c *gin.Context) {
	stream, err := r.proxy.Registry().Streams.Get(c.Param("id"))
	if errors.Is(err, janusproxy.ErrStreamNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, streamView(stream))
}

func connectionView(conn *janusproxy.Connection) ConnectionView {
	view := ConnectionView{
		ID:      conn.ID(),
		Meta:    make(map[string]interface{}),
		Plugins: make([]PluginView, 0),
	}

	conn.Meta().ForEach(func(key string, value interface{}) {
		view.Meta[key] = value
	})

	for _, plugin := range conn.Plugins() {
		view.Plugins = append(view.Plugins, PluginView{ID: plugin.ID(), Type: plugin.Type()})
	}

	return view
}

func channelViews(channels []*janusproxy.Channel) []ChannelView {
	views := make([]ChannelView, 0, len(channels))
	for _, channel := range channels {
		views = append(views, ChannelView{ID: channel.ID, Name: channel.Name, Data: channel.Data})
	}

	return views
}

func streamViews(streams []*janusproxy.Stream) []StreamView {
	views := make([]StreamView, 0, len(streams))
	for _, stream := range streams {
		views = append(views, streamView(stream))
	}

	return views
}

func streamView(stream *janusproxy.Stream) StreamView {
	view := StreamView{
		ID:          stream.ID,
		ChannelName: stream.ChannelName(),
		Media:       stream.Media(),
		Start:       stream.Start,
	}

	if stream.Channel != nil {
		view.ChannelID = stream.Channel.ID
	}

	if stream.Plugin != nil {
		view.PluginType = stream.Plugin.Type()
	}

	return view
}
