package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"vidpipe/internal/api"
	"vidpipe/internal/jobs"
	"vidpipe/internal/services"
)

func (s *apiServer) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, services.Wrap(services.ErrValidation, "api", "upload", "multipart field 'file' is required", err))
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, services.Wrap(services.ErrIO, "api", "upload", "open uploaded file", err))
		return
	}
	defer file.Close()

	job, err := s.jobs.SubmitUpload(c.Request.Context(), header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleTrim(c *gin.Context) {
	videoID, ok := pathID(c)
	if !ok {
		return
	}
	var req api.TrimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError("trim", err))
		return
	}
	job, err := s.jobs.SubmitTrim(c.Request.Context(), videoID, *req.StartTime, *req.EndTime)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleOverlay(c *gin.Context) {
	videoID, ok := pathID(c)
	if !ok {
		return
	}
	var form api.OverlayForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, bindError("overlay", err))
		return
	}

	spec := jobs.OverlaySpec{
		Type:      form.Type,
		Position:  form.Position,
		StartTime: *form.StartTime,
		EndTime:   *form.EndTime,
		Text:      form.Text,
		FontName:  form.FontName,
	}
	var media io.Reader
	header, err := c.FormFile("file")
	switch {
	case err == nil:
		file, openErr := header.Open()
		if openErr != nil {
			respondError(c, services.Wrap(services.ErrIO, "api", "overlay", "open overlay media", openErr))
			return
		}
		defer file.Close()
		media = file
		spec.MediaFilename = header.Filename
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		respondError(c, services.Wrap(services.ErrValidation, "api", "overlay", "read overlay media", err))
		return
	}

	job, err := s.jobs.SubmitOverlay(c.Request.Context(), videoID, spec, media)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleExport(c *gin.Context) {
	videoID, ok := pathID(c)
	if !ok {
		return
	}
	var req api.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError("export", err))
		return
	}
	job, err := s.jobs.SubmitQualityExport(c.Request.Context(), videoID, req.Quality)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleVideo(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	video, err := s.jobs.GetVideo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.VideoResponse{Video: api.FromVideo(video)})
}

func (s *apiServer) handleDerivatives(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	derivatives, err := s.jobs.ListDerivatives(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromDerivatives(id, derivatives))
}

func (s *apiServer) handleJobs(c *gin.Context) {
	list, err := s.jobs.ListJobs(c.Request.Context(), c.QueryArray("status")...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(list)})
}

func (s *apiServer) handleJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	job, err := s.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleJobResult(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	path, err := s.jobs.JobResult(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (s *apiServer) handleVersion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	version, err := s.jobs.GetVersion(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.VersionResponse{Version: api.FromVersion(version)})
}

func (s *apiServer) handleVersionDownload(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	path, err := s.jobs.VersionFile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (s *apiServer) handleStatus(c *gin.Context) {
	status := s.daemon.Status(c.Request.Context())
	c.JSON(http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencies(status.Dependencies),
		Preflight:    api.FromPreflight(status.Preflight),
	})
}

// pathID parses the :id parameter, answering 400 itself when it is not a
// positive integer.
func pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(c, services.Wrap(services.ErrValidation, "api", "path", fmt.Sprintf("invalid id %q", raw), nil))
		return 0, false
	}
	return id, true
}

// bindError classifies binding failures. An unknown overlay type is an
// unsupported operation rather than malformed input.
func bindError(operation string, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Tag() == "overlay_type" {
				return services.Wrap(services.ErrUnsupported, "api", operation, "unsupported overlay type", err)
			}
		}
	}
	return services.Wrap(services.ErrValidation, "api", operation, "invalid request", err)
}
