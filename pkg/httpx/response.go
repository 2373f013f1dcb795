package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"google.golang.org/protobuf/proto"
)

// WriteObject 按客户端Content-Type写出响应，兼容protobuf和json
func WriteObject(c *gin.Context, status int, obj interface{}) {
	switch c.ContentType() {
	case binding.MIMEPROTOBUF:
		if msg, ok := obj.(proto.Message); ok {
			c.ProtoBuf(status, msg)
			return
		}
		c.String(http.StatusInternalServerError, "expected proto.Message for protobuf response")
	default:
		c.JSON(status, obj)
	}
}

// WriteError 写出错误响应
func WriteError(c *gin.Context, status int, message string) {
	WriteObject(c, status, gin.H{"message": message})
}
