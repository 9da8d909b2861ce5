package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a panic in a handler into a 500 whose body has the same
// shape as an rpc error reply, so rpc clients report it as a remote failure
// with the trace id to look up. http.ErrAbortHandler is re-raised: it is how
// a streaming handler drops a connection.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}
			traceID := GetTraceID(c)
			log.Error("panic recovered",
				zap.Any("panic", r),
				zap.String("trace_id", traceID),
				zap.String("service", GetService(c)),
				zap.String("route", c.FullPath()),
				zap.String("op", c.Param("op")),
				zap.Stack("stack"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal error",
				"code":     "internal",
				"trace_id": traceID,
			})
		}()
		c.Next()
	}
}
