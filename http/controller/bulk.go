package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-share-service/service"
	"github.com/tnqbao/gau-share-service/utils"
)

func (ctrl *Controller) UploadBulk(c *gin.Context) {
	ctx := c.Request.Context()
	maxFiles := ctrl.Policy.MaxBulkFiles()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.bodyLimit(maxFiles))

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Bulk Upload] Request body over %d bytes", tooLarge.Limit)
			utils.JSON413(c, "Request too large")
			return
		}
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Bulk Upload] Invalid multipart form: %v", err)
		utils.JSON400(c, "No files uploaded")
		return
	}

	headers := form.File["files"]
	files := make([]*service.StagedFile, len(headers))
	for i, fh := range headers {
		files[i] = stage(fh)
	}

	result, err := ctrl.Upload.UploadBulk(ctx, files, c.ClientIP(), ctrl.links(c))
	if err != nil {
		ctrl.respondError(c, "[Bulk Upload]", err)
		return
	}

	utils.JSON201(c, fmt.Sprintf("Bulk upload completed. %d files uploaded successfully", result.Summary.Successful), result)
}

func (ctrl *Controller) GetBulk(c *gin.Context) {
	detail, err := ctrl.Redeem.BulkDetail(c.Request.Context(), c.Param("bulkId"), ctrl.links(c))
	if err != nil {
		ctrl.respondError(c, "[Bulk]", err)
		return
	}

	utils.JSON200(c, "Bulk upload details retrieved successfully", detail)
}

// DownloadBulk zips the batch members straight onto the wire. Once the first
// byte is out the status is fixed, so a failure after that only ends the stream.
func (ctrl *Controller) DownloadBulk(c *gin.Context) {
	ctx := c.Request.Context()

	archive, err := ctrl.Redeem.OpenBulk(ctx, c.Param("bulkId"))
	if err != nil {
		ctrl.respondError(c, "[Bulk Download]", err)
		return
	}

	ctrl.Infra.Logger.DebugWithContextf(ctx, "[Bulk Download] Streaming %d files as %s", archive.Len(), archive.FileName)

	c.Header("Content-Disposition", attachment(archive.FileName))
	c.Header("Content-Type", "application/zip")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)

	if err := archive.Stream(c.Writer); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Bulk Download] Stream of %s ended early: %v", archive.FileName, err)
	}
}
