package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/weblogparser/internal"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/internal/service"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/sirupsen/logrus"
)

// Logger of API. Replace it for testing if required.
var Logger = internal.Logger

// Response is
type Response struct {
	Code    int
	Message interface{}
}

// DefaultEntriesLimit is max number of entries returned by GET /entries
const DefaultEntriesLimit = 100

// Handler serves read-only analytics of imported log entries.
type Handler struct {
	repo      repository.Repository
	analytics *service.AnalyticsService
}

// NewHandler is constructor of Handler
func NewHandler(repo repository.Repository) *Handler {
	return &Handler{
		repo:      repo,
		analytics: service.NewAnalyticsService(repo),
	}
}

func sendResponse(c *gin.Context, resp *Response, err Error) {
	var code int
	if resp != nil {
		code = resp.Code
	}

	Logger.WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"request_id": c.GetHeader("x-request-id"),
		"ipaddr":     c.ClientIP(),
		"user_agent": c.Request.UserAgent(),
		"resp_code":  code,
		"error":      err,
	}).Info("Audit log")

	if err != nil {
		if _, ok := err.(*systemError); ok {
			internal.HandleError(err)
		}
		c.JSON(err.Code(), gin.H{"message": err.Message()})
	} else {
		c.JSON(resp.Code, resp.Message)
	}
}

func parseTime(c *gin.Context, key string, required bool) (*time.Time, Error) {
	v := c.Query(key)
	if v == "" {
		if required {
			return nil, newUserErrorf(http.StatusBadRequest, "%s is required", key)
		}
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, wrapUserError(err, http.StatusBadRequest, "Invalid "+key+" (RFC3339 is required)")
	}
	t = t.UTC()
	return &t, nil
}

func parseRange(c *gin.Context) (time.Time, time.Time, Error) {
	start, err := parseTime(c, "start", true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTime(c, "end", true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.Before(*end) {
		return time.Time{}, time.Time{}, newUserErrorf(http.StatusBadRequest, "start must be before end")
	}
	return *start, *end, nil
}

func parseBool(c *gin.Context, key string) (*bool, Error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, wrapUserError(err, http.StatusBadRequest, "Invalid "+key)
	}
	return &b, nil
}

// GetStats returns page impressions and sessions in [start, end).
func (x *Handler) GetStats(c *gin.Context) (*Response, Error) {
	start, end, uerr := parseRange(c)
	if uerr != nil {
		return nil, uerr
	}

	stats, err := x.analytics.Stats(c.Request.Context(), start, end)
	if err != nil {
		return nil, wrapSystemError(err, http.StatusInternalServerError, "Failed to calculate stats")
	}

	return &Response{Code: http.StatusOK, Message: stats}, nil
}

type metricResponse struct {
	Metric string    `json:"metric"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Value  int64     `json:"value"`
}

// GetMetric returns a metric specified by :metric parameter.
func (x *Handler) GetMetric(c *gin.Context) (*Response, Error) {
	metric := c.Param("metric")

	if metric == "earliest" {
		ts, err := x.analytics.EarliestTimestamp(c.Request.Context())
		if err != nil {
			return nil, wrapSystemError(err, http.StatusInternalServerError, "Failed to get earliest timestamp")
		}
		return &Response{Code: http.StatusOK, Message: gin.H{"metric": metric, "earliest": ts}}, nil
	}

	start, end, uerr := parseRange(c)
	if uerr != nil {
		return nil, uerr
	}

	var value int64
	var err error
	switch metric {
	case "pageimpressions":
		value, err = x.analytics.PageImpressions(c.Request.Context(), start, end)
	case "sessions":
		value, err = x.analytics.Sessions(c.Request.Context(), start, end)
	default:
		return nil, newUserErrorf(http.StatusNotFound, "Metric is not found: %s", metric)
	}
	if err != nil {
		return nil, wrapSystemError(err, http.StatusInternalServerError, "Failed to calculate "+metric)
	}

	return &Response{Code: http.StatusOK, Message: metricResponse{
		Metric: metric,
		Start:  start,
		End:    end,
		Value:  value,
	}}, nil
}

// GetFiles returns import state of all log files.
func (x *Handler) GetFiles(c *gin.Context) (*Response, Error) {
	files, err := x.repo.ListFiles(c.Request.Context())
	if err != nil {
		return nil, wrapSystemError(err, http.StatusInternalServerError, "Failed to list files")
	}
	if files == nil {
		files = []*models.LogFileSummary{}
	}

	return &Response{Code: http.StatusOK, Message: gin.H{"files": files}}, nil
}

// GetEntries returns log entries filtered by query parameters.
func (x *Handler) GetEntries(c *gin.Context) (*Response, Error) {
	var filter repository.EntryFilter
	var uerr Error

	if filter.Start, uerr = parseTime(c, "start", false); uerr != nil {
		return nil, uerr
	}
	if filter.End, uerr = parseTime(c, "end", false); uerr != nil {
		return nil, uerr
	}
	if filter.IsPage, uerr = parseBool(c, "page"); uerr != nil {
		return nil, uerr
	}
	if filter.IsRobot, uerr = parseBool(c, "robot"); uerr != nil {
		return nil, uerr
	}
	filter.FileID = c.Query("file_id")

	if v := c.Query("status"); v != "" {
		status, err := strconv.Atoi(v)
		if err != nil {
			return nil, wrapUserError(err, http.StatusBadRequest, "Invalid status")
		}
		filter.Status = &status
	}

	filter.Limit = DefaultEntriesLimit
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > DefaultEntriesLimit {
			return nil, newUserErrorf(http.StatusBadRequest, "limit must be 1 to %d", DefaultEntriesLimit)
		}
		filter.Limit = limit
	}

	entries := []*models.LogEntry{}
	if err := x.repo.ScanEntries(c.Request.Context(), &filter, func(entry *models.LogEntry) error {
		entries = append(entries, entry)
		return nil
	}); err != nil {
		return nil, wrapSystemError(err, http.StatusInternalServerError, "Failed to scan entries")
	}

	return &Response{Code: http.StatusOK, Message: gin.H{"entries": entries}}, nil
}
