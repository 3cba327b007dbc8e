package admin

import "github.com/gin-gonic/gin"

type IHandler interface {
	BatchCheckFundings(c *gin.Context)
	ProcessRewardQueue(c *gin.Context)
	RetryFailedRewards(c *gin.Context)
	RewardInfo(c *gin.Context)
	WorkerStatus(c *gin.Context)
}
