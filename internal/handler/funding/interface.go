package funding

import "github.com/gin-gonic/gin"

type IHandler interface {
	RequestDeposit(c *gin.Context)
	CheckStatus(c *gin.Context)
}
