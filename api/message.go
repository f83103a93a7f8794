package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// sendMessage appends one chat entry to a request's message log. Any
// registered caller may write to an existing request, whatever its
// state; post-resolution clarifications are allowed.
func (s *Server) sendMessage(c *gin.Context) {
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	var params struct {
		Sender  string `json:"sender"`
		Message string `json:"message"`
	}

	if err := c.BindJSON(&params); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}

	if params.Sender == "" || params.Message == "" {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
		return
	}

	msg, err := s.store.AppendMessage(requestID, params.Sender, params.Message)
	if err != nil {
		abortWithRequestError(c, err)
		return
	}

	s.metrics.Counter("messages.appended").Inc(1)

	c.JSON(http.StatusOK, gin.H{
		"result": msg,
	})
}

// getMessages returns the full message log of a request in sequence
// order. Clients wanting newest-first reverse on their side.
func (s *Server) getMessages(c *gin.Context) {
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	msgs, err := s.store.ListMessages(requestID)
	if err != nil {
		abortWithRequestError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
	})
}
