package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-share-service/http/controller"
)

type Middlewares struct {
	CORSMiddleware       gin.HandlerFunc
	APIRateLimiter       gin.HandlerFunc
	UploadRateLimiter    gin.HandlerFunc
	CheckCodeRateLimiter gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	cfg := ctrl.Config.EnvConfig
	cors := CORSMiddleware(cfg)

	limiter := NewRateLimiter(ctrl.Infra.Redis, ctrl.Infra.Logger)
	uploadWindow := time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond

	return &Middlewares{
		CORSMiddleware: cors,
		APIRateLimiter: limiter.Limit(RateLimitRule{
			Scope:   "api",
			Window:  15 * time.Minute,
			Max:     100,
			Message: "Too many requests, please try again later.",
		}),
		UploadRateLimiter: limiter.Limit(RateLimitRule{
			Scope:   "upload",
			Window:  uploadWindow,
			Max:     cfg.RateLimit.MaxRequests,
			Message: "Too many upload attempts, please try again later.",
		}),
		CheckCodeRateLimiter: limiter.Limit(RateLimitRule{
			Scope:   "check",
			Window:  5 * time.Minute,
			Max:     10,
			Message: "Too many code verification attempts, please try again later.",
		}),
	}, nil
}
