package api

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/civitas-labs/dispatch-api/schema"
	"github.com/civitas-labs/dispatch-api/store"
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9][0-9\- ]{6,14}$`)

// accountRegister is the API for registering a principal. The caller
// picks citizen or officer; the admin role is never self-assigned, it is
// bootstrapped to the first registered principal and handed out by admins
// afterward.
func (s *Server) accountRegister(c *gin.Context) {
	logger := log.WithField("api", "accountRegister")
	principal := c.GetString("requester")

	var params struct {
		Name     string `json:"name"`
		Mobile   string `json:"mobile"`
		UserType string `json:"user_type"`
	}

	if err := c.BindJSON(&params); err != nil {
		logger.WithError(err).Error(errorCannotParseRequest.Message)
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest)
		return
	}

	if params.Name == "" {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
		return
	}

	if !mobilePattern.MatchString(params.Mobile) {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidMobile)
		return
	}

	role, err := schema.ParseUserRole(params.UserType)
	if err != nil || role == schema.RoleAdmin {
		abortWithEncoding(c, http.StatusBadRequest, errorUnknownRole)
		return
	}

	profile, err := s.store.CreateProfile(principal, params.Name, params.Mobile, role)
	if err == store.ErrAccountTaken {
		abortWithEncoding(c, http.StatusForbidden, errorAccountTaken)
		return
	} else if shouldInterupt(err, c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": profile,
	})
}

// accountDetail is the API to query the caller's own profile
func (s *Server) accountDetail(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": profile,
	})
}

// accountUpdate is the API to update the caller's contact fields. The
// role field cannot be changed here.
func (s *Server) accountUpdate(c *gin.Context) {
	principal := c.GetString("requester")

	var params struct {
		Name   string `json:"name"`
		Mobile string `json:"mobile"`
	}

	if err := c.BindJSON(&params); err != nil {
		c.Error(err)
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest)
		return
	}

	if params.Name == "" {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
		return
	}

	if !mobilePattern.MatchString(params.Mobile) {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidMobile)
		return
	}

	if err := s.store.UpdateProfile(principal, params.Name, params.Mobile); err != nil {
		if err == store.ErrAccountNotFound {
			abortWithEncoding(c, http.StatusNotFound, errorAccountNotFound)
			return
		}
		shouldInterupt(err, c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "OK"})
}

// accountRole reports the caller's role
func (s *Server) accountRole(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"role":     profile.Role,
		"is_admin": profile.Role == schema.RoleAdmin,
	})
}

// adminListAccounts is the API for admins to list all registered profiles
func (s *Server) adminListAccounts(c *gin.Context) {
	profiles, err := s.store.ListProfiles()
	if shouldInterupt(err, c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accounts": profiles,
	})
}

// adminGetAccount is the API for admins to query a specific profile
func (s *Server) adminGetAccount(c *gin.Context) {
	principal := c.Param("principal")

	profile, err := s.store.GetProfile(principal)
	if err == store.ErrAccountNotFound {
		abortWithEncoding(c, http.StatusNotFound, errorAccountNotFound)
		return
	} else if shouldInterupt(err, c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": profile,
	})
}

// adminAssignRole is the API for admins to change a principal's role
func (s *Server) adminAssignRole(c *gin.Context) {
	principal := c.Param("principal")

	var params struct {
		Role string `json:"role"`
	}

	if err := c.BindJSON(&params); err != nil {
		c.Error(err)
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest)
		return
	}

	role, err := schema.ParseUserRole(params.Role)
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorUnknownRole)
		return
	}

	if err := s.store.AssignRole(principal, role); err != nil {
		if err == store.ErrAccountNotFound {
			abortWithEncoding(c, http.StatusNotFound, errorAccountNotFound)
			return
		}
		shouldInterupt(err, c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "OK"})
}
