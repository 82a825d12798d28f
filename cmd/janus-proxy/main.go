package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	janusproxy "github.com/samespace/janus-proxy"
	"github.com/samespace/janus-proxy/pkg/cmapi"
	"github.com/samespace/janus-proxy/pkg/statusapi"
	"golang.org/x/net/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml configuration file")
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Parse()

	defer glog.Flush()

	cfg, err := janusproxy.LoadConfig(*configPath)
	if err != nil {
		glog.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	apiClient, err := cmapi.New(cfg.CMAPI.BaseURL, cfg.CMAPI.Key, cmapi.WithTimeout(cfg.CMAPI.Timeout))
	if err != nil {
		glog.Fatal(err)
	}

	opts := cfg.ProxyOptions()
	opts.API = apiClient
	opts.Dial = janusproxy.WebsocketDialer(cfg.Janus.URL, cfg.Janus.Origin)

	proxy := janusproxy.NewProxy(ctx, cfg.Name, opts)
	defer proxy.Close()

	registry := prometheus.NewRegistry()
	metrics, err := janusproxy.NewMetricsExtension(registry)
	if err != nil {
		glog.Fatal(err)
	}
	proxy.AddExtension(metrics)

	wsServer := websocket.Server{
		Handshake: func(config *websocket.Config, req *http.Request) error {
			for _, protocol := range config.Protocol {
				if protocol == janusproxy.JanusProtocol {
					config.Protocol = []string{janusproxy.JanusProtocol}
					return nil
				}
			}
			// clients without a subprotocol are accepted as well
			config.Protocol = nil
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			req := conn.Request()
			client := janusproxy.NewWebsocketTransport(conn)
			if err := proxy.HandleClient(req.Context(), client, req.URL.Query().Get(janusproxy.MetaSessionData), req.RemoteAddr); err != nil {
				glog.Warning("proxy: ", err)
			}
		},
	}

	proxyMux := http.NewServeMux()
	proxyMux.Handle(cfg.Listen.Path, wsServer)
	proxyServer := &http.Server{Addr: cfg.Listen.Address, Handler: proxyMux}

	gin.SetMode(gin.ReleaseMode)
	handler := gin.New()
	handler.Use(gin.Recovery())
	statusapi.NewRouter(handler, proxy, registry)
	statusServer := &http.Server{Addr: cfg.Status.Address, Handler: handler}

	go serve(proxyServer, cancel)
	go serve(statusServer, cancel)

	glog.Info("janus proxy ", cfg.Name, " listening on ", cfg.Listen.Address, " for ", cfg.Janus.URL)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	proxy.Close()
	_ = proxyServer.Shutdown(shutdownCtx)
	_ = statusServer.Shutdown(shutdownCtx)

	glog.Info("janus proxy stopped")
}

func serve(server *http.Server, cancel context.CancelFunc) {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		glog.Error("http server ", server.Addr, ": ", err)
		cancel()
	}
}
