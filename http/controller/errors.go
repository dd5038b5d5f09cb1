package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-share-service/service"
	"github.com/tnqbao/gau-share-service/utils"
)

const internalErrorMessage = "Internal server error"

// respondError is the single place a pipeline error becomes an HTTP answer.
// Only the user-safe Message of a tagged error reaches the client.
func (ctrl *Controller) respondError(c *gin.Context, prefix string, err error) {
	ctx := c.Request.Context()

	e, ok := service.AsError(err)
	if !ok {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "%s Unexpected error: %v", prefix, err)
		utils.JSON500(c, internalErrorMessage)
		return
	}

	switch e.Kind {
	case service.KindValidation:
		var rejection *service.BulkRejection
		if errors.As(e, &rejection) {
			utils.JSONErrorWithDetails(c, http.StatusBadRequest, e.Message, "failedFiles", rejection.Files)
			return
		}
		utils.JSON400(c, e.Message)
	case service.KindNotFound:
		utils.JSON404(c, e.Message)
	case service.KindExpired:
		utils.JSON410(c, e.Message)
	case service.KindQuotaExceeded:
		utils.JSON403(c, e.Message)
	case service.KindBlobMissing:
		ctrl.Infra.Logger.WarningWithAttrs(ctx, prefix+" Serving 404 for an entry without blob",
			slog.Bool("storage_integrity", true),
			slog.String("path", c.Request.URL.Path),
		)
		utils.JSON404(c, e.Message)
	case service.KindUpstream:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, e.Err, "%s %s: %v", prefix, e.Message, e.Err)
		utils.JSON500(c, e.Message)
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "%s Unmapped error kind %s", prefix, e.Kind)
		utils.JSON500(c, internalErrorMessage)
	}
}
