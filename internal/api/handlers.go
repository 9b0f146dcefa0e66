package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rtlmate/internal/archive"
	"rtlmate/internal/artifact"
	"rtlmate/internal/client"
	fileutil "rtlmate/internal/file"
	"rtlmate/internal/monitor"
	"rtlmate/internal/upload"
)

type packageRequest struct {
	TopModule  string   `json:"top_module"`
	SubModules []string `json:"sub_modules"`
}

type generateJSONRequest struct {
	Prompt string `json:"prompt"`
}

type taskResponse struct {
	TaskID   string `json:"task_id,omitempty"`
	Active   bool   `json:"active"`
	Degraded bool   `json:"degraded"`
	monitor.Snapshot
}

// API wires the upload builder, artifact resolver, task monitor and backend
// client behind the local HTTP surface.
type API struct {
	builder  *upload.TreeBuilder
	store    upload.PackageStore
	resolver *artifact.Resolver
	backend  *client.Client
	monitor  *monitor.Monitor
	dataDir  string
}

func NewAPI(builder *upload.TreeBuilder, store upload.PackageStore, resolver *artifact.Resolver, backend *client.Client, mon *monitor.Monitor, dataDir string) *API {
	return &API{
		builder:  builder,
		store:    store,
		resolver: resolver,
		backend:  backend,
		monitor:  mon,
		dataDir:  dataDir,
	}
}

// RegisterRoutes registers API routes on the provided gin engine.
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/package", a.BuildPackage)
		api.GET("/package", a.GetPackage)
		api.DELETE("/package", a.ClearPackage)
		api.POST("/package/files/:module/:category", a.RecordFiles)
		api.GET("/package/files/:module/:category/:name", a.ServeFile)
		api.GET("/package/archive", a.DownloadPackageArchive)
		api.POST("/generate", a.Generate)
		api.GET("/task", a.GetTask)
		api.POST("/task/stop", a.StopTask)
		api.GET("/result/:id", a.GetResult)
		api.GET("/download/:id", a.Download)
	}
}

// BuildPackage applies the submitted module names and finalizes the package.
func (a *API) BuildPackage(c *gin.Context) {
	var req packageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid package request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	a.builder.SetTopModule(req.TopModule)
	if len(req.SubModules) > 0 {
		a.builder.SetSubModuleCount(len(req.SubModules))
		for i, name := range req.SubModules {
			_ = a.builder.RenameSubModule(i, name)
		}
	}

	pkg, err := a.builder.Build(c.Request.Context())
	if err != nil {
		var verrs upload.ValidationErrors
		if errors.As(err, &verrs) {
			log.Warn().Int("errors", len(verrs)).Msg("package validation failed")
			c.JSON(http.StatusBadRequest, gin.H{"errors": verrs})
			return
		}
		log.Error().Err(err).Msg("package build failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("top_module", pkg.TopModule).Msg("package built")
	c.JSON(http.StatusOK, pkg)
}

// GetPackage returns the current persisted package.
func (a *API) GetPackage(c *gin.Context) {
	pkg, err := a.store.Load(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("load package failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if pkg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no package present"})
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// ClearPackage removes the persisted package.
func (a *API) ClearPackage(c *gin.Context) {
	if err := a.store.Clear(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("clear package failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordFiles stores the posted files under the data dir, records them for
// the (module, category) pair, and forwards each to the backend best-effort.
func (a *API) RecordFiles(c *gin.Context) {
	module := c.Param("module")
	category := upload.CategoryKey(c.Param("category"))

	form, err := c.MultipartForm()
	if err != nil {
		log.Warn().Err(err).Msg("invalid multipart form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	parts := form.File["files"]
	if len(parts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": upload.ErrNoFiles.Error()})
		return
	}

	refs := make([]upload.FileRef, 0, len(parts))
	for _, part := range parts {
		ref, err := a.storePart(part)
		if err != nil {
			log.Error().Err(err).Str("name", part.Filename).Msg("store uploaded file failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		refs = append(refs, ref)
	}

	if err := a.builder.RecordUpload(module, category, refs); err != nil {
		log.Warn().Err(err).Str("module", module).Str("category", string(category)).Msg("record upload rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// forward to the backend; a failure here does not undo the local record
	for _, ref := range refs {
		if _, err := a.backend.UploadFile(c.Request.Context(), ref); err != nil {
			log.Warn().Err(err).Str("name", ref.Name).Msg("backend upload failed")
		}
	}

	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	log.Info().Str("module", module).Str("category", string(category)).Int("files", len(names)).Msg("files recorded")
	c.JSON(http.StatusOK, gin.H{"module": module, "category": category, "files": names})
}

// storePart persists one multipart file part and returns its FileRef.
func (a *API) storePart(part *multipart.FileHeader) (upload.FileRef, error) {
	src, err := part.Open()
	if err != nil {
		return upload.FileRef{}, fmt.Errorf("open multipart file: %w", err)
	}
	defer func() { _ = src.Close() }()
	return a.saveUpload(part.Filename, src, part.Size)
}

// ServeFile resolves the named package file and serves it as an attachment.
func (a *API) ServeFile(c *gin.Context) {
	module := c.Param("module")
	category := upload.CategoryKey(c.Param("category"))
	name := c.Param("name")

	pkg, err := a.store.Load(c.Request.Context())
	if err != nil || pkg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no package present"})
		return
	}
	ref, ok := pkg.Find(module, category, name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found in package"})
		return
	}
	handle, err := a.resolver.Resolve(ref)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("resolve artifact failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(handle.Path, ref.Name)
}

// DownloadPackageArchive zips the current package's files and serves the zip.
func (a *API) DownloadPackageArchive(c *gin.Context) {
	pkg, err := a.store.Load(c.Request.Context())
	if err != nil || pkg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no package present"})
		return
	}
	destZip := filepath.Join(a.dataDir, "package-archive.zip")
	if _, err := archive.BuildPackageArchive(c.Request.Context(), destZip, pkg); err != nil {
		log.Error().Err(err).Msg("build package archive failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(destZip, pkg.TopModule+"-package.zip")
}

// Generate submits the prompt to the backend and starts monitoring the task.
func (a *API) Generate(c *gin.Context) {
	var req generateJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid generate request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	handle, err := a.backend.SubmitPrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		log.Warn().Err(err).Msg("prompt submission rejected")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	a.monitor.Start(handle)
	c.JSON(http.StatusAccepted, gin.H{"task_id": handle.ID})
}

// GetTask returns the current task snapshot.
func (a *API) GetTask(c *gin.Context) {
	resp := taskResponse{
		Active:   a.monitor.Active(),
		Degraded: a.monitor.Degraded(),
		Snapshot: a.monitor.Snapshot(),
	}
	if handle, ok := a.monitor.Bound(); ok {
		resp.TaskID = handle.ID
	}
	c.JSON(http.StatusOK, resp)
}

// StopTask stops polling the current task.
func (a *API) StopTask(c *gin.Context) {
	a.monitor.Stop()
	c.Status(http.StatusNoContent)
}

// GetResult fetches the final generated output for a task.
func (a *API) GetResult(c *gin.Context) {
	id := c.Param("id")
	output, err := a.backend.FetchResult(c.Request.Context(), monitor.TaskHandle{ID: id})
	if err != nil {
		log.Warn().Str("task_id", id).Err(err).Msg("fetch result failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": output})
}

// Download redirects to the backend's download locator for the task.
func (a *API) Download(c *gin.Context) {
	id := c.Param("id")
	c.Redirect(http.StatusTemporaryRedirect, a.backend.DownloadURL(monitor.TaskHandle{ID: id}))
}

// saveUpload writes one multipart file under the data dir and returns its FileRef.
func (a *API) saveUpload(name string, src io.Reader, size int64) (upload.FileRef, error) {
	path := filepath.Join(a.dataDir, "uploads", uuid.NewString()+"-"+filepath.Base(name))
	if err := fileutil.CopyAtomic(path, src); err != nil {
		return upload.FileRef{}, err
	}
	return upload.NewFileRefFromPath(filepath.Base(name), path, size), nil
}
