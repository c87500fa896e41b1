package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vipul43/gigwatch/internal/models"
	"github.com/vipul43/gigwatch/internal/repository"
	"github.com/vipul43/gigwatch/internal/service"
	"github.com/vipul43/gigwatch/internal/watcher"
)

const (
	defaultDays     = 7
	maxDays         = 365
	defaultPageSize = 5
	maxPageSize     = 50
	defaultJobLimit = 20
	maxJobLimit     = 100
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type requestPage struct {
	Items  []models.FreelanceRequest `json:"items"`
	Total  int64                     `json:"total"`
	Offset int                       `json:"offset"`
	Limit  int                       `json:"limit"`
}

func (s *Server) listRequests(c *gin.Context) {
	q, err := parseRequestQuery(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if q.Category != "" {
		if _, err := s.categories.Get(c.Request.Context(), q.Category); err != nil {
			if errors.Is(err, repository.ErrCategoryNotFound) {
				abortWithError(c, http.StatusNotFound, "unknown category")
				return
			}
			s.internalError(c, err)
			return
		}
	}

	items, total, err := s.requests.Query(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if items == nil {
		items = []models.FreelanceRequest{}
	}
	c.JSON(http.StatusOK, requestPage{Items: items, Total: total, Offset: q.Offset, Limit: q.Limit})
}

func parseRequestQuery(c *gin.Context) (repository.RequestQuery, error) {
	q := repository.RequestQuery{
		Category: strings.TrimSpace(c.Query("category")),
	}
	if q.Category == "all" {
		q.Category = ""
	}

	var err error
	if q.Days, err = intParam(c, "days", defaultDays, 1, maxDays); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(c, "offset", 0, 0, -1); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(c, "limit", defaultPageSize, 1, maxPageSize); err != nil {
		return q, err
	}
	return q, nil
}

// intParam parses an optional integer query parameter. max < 0 means
// unbounded.
func intParam(c *gin.Context, name string, def, min, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || (max >= 0 && v > max) {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func (s *Server) stats(c *gin.Context) {
	ctx := c.Request.Context()
	counts, err := s.requests.StatsByCategory(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	active, err := s.categories.ListActive(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.SummarizeStats(counts, active))
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.categories.ListActive(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"items": categories})
}

func (s *Server) lastJob(c *gin.Context) {
	job, err := s.jobs.Last(c.Request.Context())
	if err != nil {
		if errors.Is(err, repository.ErrJobLogNotFound) {
			abortWithError(c, http.StatusNotFound, "no runs yet")
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) recentJobs(c *gin.Context) {
	limit, err := intParam(c, "limit", defaultJobLimit, 1, maxJobLimit)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.jobs.Recent(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if jobs == nil {
		jobs = []models.JobLog{}
	}
	c.JSON(http.StatusOK, gin.H{"items": jobs})
}

func (s *Server) runJob(c *gin.Context) {
	if err := s.trigger.Trigger(models.TriggerManual); err != nil {
		if errors.Is(err, watcher.ErrRunInProgress) {
			abortWithError(c, http.StatusConflict, err.Error())
			return
		}
		if errors.Is(err, watcher.ErrStopped) {
			abortWithError(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminToken == "" {
			abortWithError(c, http.StatusForbidden, "admin API disabled")
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	abortWithError(c, http.StatusInternalServerError, "internal error")
}
