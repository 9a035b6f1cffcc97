package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/mdm_backend/utils"
)

const (
	HeaderSchoolId      = "X-School-Id"
	HeaderUserId        = "X-User-Id"
	HeaderUserName      = "X-User-Name"
	HeaderCorrelationId = "X-Correlation-Id"
)

// SessionMiddleware copies the caller's school and user headers into the
// request context. Authentication happens upstream; /api routes without a
// school are rejected.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		cid := strings.TrimSpace(c.GetHeader(HeaderCorrelationId))
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
		c.Header(HeaderCorrelationId, cid)

		if schoolId := strings.TrimSpace(c.GetHeader(HeaderSchoolId)); schoolId != "" {
			ctx = utils.SetSchoolIdInContext(ctx, schoolId)
		} else if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": HeaderSchoolId + " header is required"})
			c.Abort()
			return
		}

		if raw := strings.TrimSpace(c.GetHeader(HeaderUserId)); raw != "" {
			userId, err := strconv.Atoi(raw)
			if err != nil || userId < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + HeaderUserId})
				c.Abort()
				return
			}
			ctx = utils.SetUserIdInContext(ctx, userId)
		}
		if name := strings.TrimSpace(c.GetHeader(HeaderUserName)); name != "" {
			ctx = utils.SetUserNameInContext(ctx, name)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
