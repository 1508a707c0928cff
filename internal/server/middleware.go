package server

import (
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-Id"
)

// originHeader restricts browser access to pages served from our own port.
// The bound port wins over the configured one, which may be 0.
func (s *Server) originHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", fmt.Sprintf("http://localhost:%d", s.port()))
		c.Next()
	}
}

func (s *Server) port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok && tcp.Port != 0 {
		return tcp.Port
	}
	return s.cfg.GetPort()
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
