package clinicaltrials

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"medagent/logger"
)

// HTTPServer exposes the trial tools as a REST API for the agent's action
// group.
type HTTPServer struct {
	service *Service
	logger  logger.Logger
}

// NewHTTPServer creates an HTTPServer.
func NewHTTPServer(service *Service, log logger.Logger) *HTTPServer {
	return &HTTPServer{service: service, logger: log}
}

// Router builds the gin engine with all tool routes.
func (s *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/search_trials", s.searchTrials)
	r.GET("/trial_details", s.trialDetails)
	r.GET("/closest_trials", s.closestTrials)
	r.GET("/inclusion_criteria", s.inclusionCriteria)
	r.GET("/exclusion_criteria", s.exclusionCriteria)

	return r
}

func (s *HTTPServer) searchTrials(c *gin.Context) {
	trials, err := s.service.SearchTrials(c.Request.Context(), SearchQuery{
		LeadSponsor:     c.Query("lead_sponsor_name"),
		DiseaseArea:     c.Query("disease_area"),
		OverallStatus:   c.Query("overall_status"),
		LocationCountry: c.Query("location_country"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trials)
}

func (s *HTTPServer) trialDetails(c *gin.Context) {
	nctID := c.Query("nct_id")
	if nctID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nct_id is required"})
		return
	}
	trial, err := s.service.TrialDetails(c.Request.Context(), nctID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trial)
}

func (s *HTTPServer) closestTrials(c *gin.Context) {
	ids := splitIDs(c.Query("nct_ids"))
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nct_ids is required"})
		return
	}

	maxDistance := 0.0
	if raw := c.Query("max_distance"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_distance must be a number"})
			return
		}
		maxDistance = parsed
	}

	trials, err := s.service.ClosestTrials(c.Request.Context(), ClosestQuery{
		NCTIDs:        ids,
		City:          c.Query("city"),
		State:         c.Query("state"),
		ZipCode:       c.Query("zip_code"),
		Country:       c.Query("country"),
		MaxDistanceKm: maxDistance,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trials)
}

func (s *HTTPServer) inclusionCriteria(c *gin.Context) {
	nctID := c.Query("nct_id")
	if nctID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nct_id is required"})
		return
	}
	criteria, err := s.service.InclusionCriteria(c.Request.Context(), nctID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"criteria": criteria})
}

func (s *HTTPServer) exclusionCriteria(c *gin.Context) {
	nctID := c.Query("nct_id")
	if nctID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nct_id is required"})
		return
	}
	criteria, err := s.service.ExclusionCriteria(c.Request.Context(), nctID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"criteria": criteria})
}

func (s *HTTPServer) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNoLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("trial tool request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
