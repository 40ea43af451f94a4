package labreport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/reports"
	"github.com/sharath018/health-management-backend/utils"
)

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

func filterFrom(c *gin.Context) (Filter, error) {
	from, to, err := reports.DateRange(c.Query("from_date"), c.Query("to_date"), nil)
	if err != nil {
		return Filter{}, err
	}
	f := Filter{
		PatientName: c.Query("patient_name"),
		Phone:       c.Query("phone"),
		UploadedBy:  c.Query("uploaded_by"),
		FromDate:    from,
		ToDate:      to,
	}
	if v := c.Query("report_date"); v != "" {
		d, err := utils.ParseDate(v)
		if err != nil {
			return Filter{}, apperr.Validation("report_date must be YYYY-MM-DD")
		}
		f.ReportDate = &d
	}
	return f, nil
}

func uploaded(c *gin.Context) (*File, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &File{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f}, func() { f.Close() }, nil
}

// List handles GET /lab-reports.
// @Summary List lab reports
// @Description Doctors see every report, patients their own. An empty scope returns has_reports=false.
// @Tags Lab Reports
// @Produce json
// @Param patient_name query string false "Patient name"
// @Param phone query string false "Patient phone"
// @Param report_date query string false "YYYY-MM-DD"
// @Param from_date query string false "YYYY-MM-DD"
// @Param to_date query string false "YYYY-MM-DD"
// @Param uploaded_by query string false "Uploader username"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Success 200 {object} Page
// @Router /api/v1/lab-reports [get]
func (h *Handler) List(c *gin.Context) {
	f, err := filterFrom(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	res, err := h.service.List(c.Request.Context(), access.ActorFrom(c.Request.Context()), f, page, limit)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if res.Page == nil {
		c.JSON(http.StatusOK, res.Empty)
		return
	}
	c.JSON(http.StatusOK, res.Page)
}

// Create handles multipart POST /lab-reports with a "file" part.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	file, done, err := uploaded(c)
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	defer done()
	rep, err := h.service.Create(c.Request.Context(), access.ActorFrom(c.Request.Context()), in, file)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

func reportID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lab report ID"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	rep, err := h.service.Get(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var in Input
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	file, done, err := uploaded(c)
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	defer done()
	rep, err := h.service.Update(c.Request.Context(), access.ActorFrom(c.Request.Context()), id, in, file)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), access.ActorFrom(c.Request.Context()), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lab report deleted successfully"})
}

// Export handles GET /lab-reports/export with the list filters.
func (h *Handler) Export(c *gin.Context) {
	f, err := filterFrom(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	file, err := h.service.ExportXLSX(c.Request.Context(), access.ActorFrom(c.Request.Context()), f)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	reports.Attach(c, file)
}
