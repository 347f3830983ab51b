// Package server is the HTTP layer around the signaling core: it serves
// static content, a few diagnostics endpoints, and hands upgraded
// sockets to the websocket transport server.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshlink-dev/signaling-server/internal/config"
	"github.com/meshlink-dev/signaling-server/internal/signaling"
	"github.com/meshlink-dev/signaling-server/internal/websocket"
)

// ipResponse is the body of the /ip diagnostics endpoint.
type ipResponse struct {
	IP            string                     `json:"ip"`
	Port          int                        `json:"port"`
	URL           string                     `json:"url"`
	Protocol      string                     `json:"protocol"`
	AllInterfaces map[string][]InterfaceAddr `json:"allInterfaces"`
}

// NewRouter builds the gin engine: the /ws upgrade route, health, local
// IP discovery, hub stats, Prometheus metrics, and the static content
// server for everything else.
func NewRouter(cfg *config.Config, hub *signaling.Hub, ws *websocket.Server, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", serveWs(ws, logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "Signaling server is healthy.")
	})

	r.GET("/ip", func(c *gin.Context) {
		protocol := "http"
		if cfg.Server.HTTPS.Enabled {
			protocol = "https"
		}
		ip := LocalIPAddress()
		c.JSON(http.StatusOK, ipResponse{
			IP:            ip,
			Port:          cfg.Server.Port,
			URL:           fmt.Sprintf("%s://%s:%d", protocol, ip, cfg.Server.Port),
			Protocol:      protocol,
			AllInterfaces: AllNetworkInterfaces(),
		})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Info())
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(staticHandler(cfg.Server.StaticDir))

	return r
}

// serveWs hijacks the HTTP connection and hands the raw socket plus the
// request headers to the transport server, which performs the upgrade
// handshake itself.
func serveWs(ws *websocket.Server, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sock, _, err := c.Writer.Hijack()
		if err != nil {
			logger.Error("failed to hijack connection", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if _, err := ws.Upgrade(sock, c.Request.Header); err != nil {
			logger.Warn("websocket upgrade failed",
				"remote_addr", c.Request.RemoteAddr, "error", err)
		}
	}
}

// staticHandler serves files from root with "/" mapped to index.html and
// a plain 404 page for anything missing. MIME types come from the file
// extension.
func staticHandler(root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}

		reqPath := path.Clean(c.Request.URL.Path)
		if reqPath == "/" {
			reqPath = "/index.html"
		}

		full := filepath.Join(root, filepath.FromSlash(reqPath))
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<h1>404 Not Found</h1>"))
			return
		}

		http.ServeFile(c.Writer, c.Request, full)
	}
}
