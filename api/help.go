package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/civitas-labs/dispatch-api/schema"
	"github.com/civitas-labs/dispatch-api/store"
)

// sendSOSRequest is the API for a citizen to raise an emergency alert.
// The citizen's name and mobile are copied from the profile into the
// request so responders see the contact details as of alert time.
func (s *Server) sendSOSRequest(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer)
		return
	}

	// officers respond to alerts, they do not raise them
	if profile.Role == schema.RoleOfficer {
		abortWithEncoding(c, http.StatusForbidden, errorNotPermitted)
		return
	}

	var params struct {
		Location schema.Location `json:"location"`
	}

	if err := c.BindJSON(&params); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}

	if !params.Location.Valid() {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidLocation)
		return
	}

	// best-effort address snapshot; an unreachable geocoder never blocks
	// a dispatch
	var address string
	if s.geoClient != nil {
		a, err := s.geoClient.Get(params.Location)
		if err != nil {
			log.WithError(err).Warn("resolve request address")
		} else {
			address = a
		}
	}

	req, err := s.store.CreateRequest(profile.Principal, profile.Name, profile.Mobile, address, params.Location)
	if shouldInterupt(err, c) {
		return
	}

	s.metrics.Counter("requests.created").Inc(1)

	c.JSON(http.StatusOK, gin.H{
		"result": req,
	})
}

// acceptRequest is the API for an officer to take ownership of a pending
// alert. When two officers race, the store lets exactly one through; the
// loser gets the not-pending precondition error and must re-poll.
func (s *Server) acceptRequest(c *gin.Context) {
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	officer := c.GetString("requester")

	if err := s.store.AcceptRequest(requestID, officer); err != nil {
		abortWithRequestError(c, err)
		return
	}

	s.metrics.Counter("requests.accepted").Inc(1)

	c.JSON(http.StatusOK, gin.H{"result": "OK"})
}

// completeRequest is the API for an officer to resolve an accepted alert.
func (s *Server) completeRequest(c *gin.Context) {
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	officer := c.GetString("requester")

	if err := s.store.CompleteRequest(requestID, officer); err != nil {
		abortWithRequestError(c, err)
		return
	}

	s.metrics.Counter("requests.completed").Inc(1)

	c.JSON(http.StatusOK, gin.H{"result": "OK"})
}

// listRequests is the API behind the dispatch dashboards. Officers and
// admins see every request, optionally filtered by status; citizens see
// their own requests only.
func (s *Server) listRequests(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer)
		return
	}

	if profile.Role == schema.RoleCitizen {
		reqs, err := s.store.ListRequestsByPrincipal(profile.Principal)
		if shouldInterupt(err, c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": reqs})
		return
	}

	if statusParam := c.Query("status"); statusParam != "" {
		status, err := schema.ParseRequestStatus(statusParam)
		if err != nil {
			abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
			return
		}

		reqs, err := s.store.ListRequestsByStatus(status)
		if shouldInterupt(err, c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": reqs})
		return
	}

	reqs, err := s.store.ListRequests()
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// getRequest is the API behind the request detail view. A citizen may
// only read their own request.
func (s *Server) getRequest(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer)
		return
	}

	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	req, err := s.store.GetRequest(requestID)
	if err != nil {
		abortWithRequestError(c, err)
		return
	}

	if profile.Role == schema.RoleCitizen && req.CitizenPrincipal != profile.Principal {
		abortWithEncoding(c, http.StatusForbidden, errorNotPermitted)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": req})
}

func requestIDParam(c *gin.Context) (uint64, bool) {
	requestID, err := strconv.ParseUint(c.Param("requestID"), 10, 64)
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return 0, false
	}
	return requestID, true
}

func abortWithRequestError(c *gin.Context, err error) {
	switch err {
	case store.ErrRequestNotFound:
		abortWithEncoding(c, http.StatusNotFound, errorRequestNotFound, err)
	case store.ErrRequestNotPending:
		abortWithEncoding(c, http.StatusConflict, errorRequestNotPending, err)
	case store.ErrRequestNotAccepted:
		abortWithEncoding(c, http.StatusConflict, errorRequestNotAccepted, err)
	default:
		log.Error(err)
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
	}
}
