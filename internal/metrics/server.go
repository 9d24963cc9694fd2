package metrics

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bluenviron/dashmtx/internal/logger"
)

// Server exposes the metrics over HTTP.
type Server struct {
	Address string
	Metrics *Metrics
	Parent  logger.Writer

	ln net.Listener
	hs *http.Server
}

// Initialize initializes Server.
func (s *Server) Initialize() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.SetTrustedProxies(nil) //nolint:errcheck
	router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	var err error
	s.ln, err = net.Listen("tcp", s.Address)
	if err != nil {
		return err
	}

	s.hs = &http.Server{
		Handler: router,
	}
	go s.hs.Serve(s.ln) //nolint:errcheck

	s.Log(logger.Info, "listener opened on %s", s.Address)

	return nil
}

// Log implements logger.Writer.
func (s *Server) Log(level logger.Level, format string, args ...interface{}) {
	s.Parent.Log(level, "[metrics] "+format, args...)
}

// Close closes Server.
func (s *Server) Close() {
	s.hs.Close()
}
