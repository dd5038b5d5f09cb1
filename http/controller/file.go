package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-share-service/http/controller/dto"
	"github.com/tnqbao/gau-share-service/utils"
)

func (ctrl *Controller) UploadFile(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.bodyLimit(1))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Upload] Request body over %d bytes", tooLarge.Limit)
			utils.JSON413(c, "File size too large!")
			return
		}
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Upload] No file in request: %v", err)
		utils.JSON400(c, "No file uploaded")
		return
	}

	result, err := ctrl.Upload.UploadSingle(ctx, stage(fileHeader), c.ClientIP(), ctrl.links(c))
	if err != nil {
		ctrl.respondError(c, "[Upload]", err)
		return
	}

	utils.JSON201(c, "File uploaded successfully", result)
}

func (ctrl *Controller) CheckCode(c *gin.Context) {
	var req dto.CheckCodeRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Code is required")
		return
	}

	result, err := ctrl.Redeem.Check(c.Request.Context(), req.Code, ctrl.links(c))
	if err != nil {
		ctrl.respondError(c, "[Check]", err)
		return
	}

	utils.JSON200(c, "Code verified successfully", result)
}

func (ctrl *Controller) GetMeta(c *gin.Context) {
	meta, err := ctrl.Redeem.Meta(c.Request.Context(), c.Param("id"))
	if err != nil {
		ctrl.respondError(c, "[Meta]", err)
		return
	}

	utils.JSON200(c, "File metadata retrieved successfully", meta)
}

func (ctrl *Controller) GetStats(c *gin.Context) {
	stats, err := ctrl.Stats.Stats(c.Request.Context())
	if err != nil {
		ctrl.respondError(c, "[Stats]", err)
		return
	}

	utils.JSON200(c, "Stats retrieved successfully", stats)
}
