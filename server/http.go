package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

const landingPage = `
<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: sans-serif; text-align: center; padding-top: 50px; }
        code { background: #f4f4f4; padding: 5px; border-radius: 5px; }
    </style>
</head>
<body>
    <h1>%[1]s</h1>
    <p>This is the action endpoint of the PSSI admin dashboard.</p>
    <p>Please use the TUI client to connect.</p>
    <p>Run: <code>./client -host %[2]s</code></p>
</body>
</html>
`

// requestLogger logs every HTTP request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"function": "requestLogger",
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"latency":  time.Since(start).String(),
		}).Debug("HTTP request")
	}
}

// NewRouter wires the landing page, the websocket endpoint and the HTTP form
// of the action endpoint.
func NewRouter(config *Config, hub *Hub, server *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/", func(c *gin.Context) {
		page := fmt.Sprintf(landingPage, config.ServerName, config.Addr())
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	})

	r.GET("/ws", func(c *gin.Context) {
		serveWs(hub, c.Writer, c.Request)
	})

	r.POST("/api/exec", func(c *gin.Context) {
		var req model.Request
		if strings.HasPrefix(c.ContentType(), "application/json") {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, failure(textBadRequest))
				return
			}
		} else {
			// Form posts carry the same two fields.
			req.Action = model.Action(c.PostForm("action"))
			req.PostData = c.PostForm("postData")
		}
		c.JSON(http.StatusOK, server.Handle(c.Request.Context(), req))
	})

	return r
}
