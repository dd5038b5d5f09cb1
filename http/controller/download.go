package controller

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-share-service/service"
)

func (ctrl *Controller) DownloadByID(c *gin.Context) {
	d, err := ctrl.Redeem.OpenByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		ctrl.respondError(c, "[Download]", err)
		return
	}
	ctrl.streamDownload(c, d)
}

func (ctrl *Controller) DownloadByCode(c *gin.Context) {
	d, err := ctrl.Redeem.OpenByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		ctrl.respondError(c, "[Download]", err)
		return
	}
	ctrl.streamDownload(c, d)
}

// streamDownload copies an already redeemed blob to the client. A broken
// connection ends the copy; the credit stays spent.
func (ctrl *Controller) streamDownload(c *gin.Context, d *service.Download) {
	defer d.Body.Close()

	c.Header("Content-Disposition", attachment(d.Entry.OriginalName))
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Length", strconv.FormatInt(d.Entry.Size, 10))
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, d.Body); err != nil {
		ctrl.Infra.Logger.InfoWithContextf(c.Request.Context(), "[Download] Transfer of %s ended early: %v", d.Entry.ID, err)
	}
}

func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
