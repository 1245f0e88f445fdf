package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/middleware"
	"github.com/yeisme/chest/pkg/scheduler"
)

// SetRoleRequest 切换节点角色.
type SetRoleRequest struct {
	Role configs.Role `json:"role" binding:"required,oneof=replica client"`
}

// ReplicaStatus 返回节点角色、容量统计与周期任务.
func ReplicaStatus(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	resp := gin.H{
		"role":  chest.Role(),
		"ready": chest.Ready(),
		"stats": chest.Backend().Stats(),
	}

	if sched := middleware.GetScheduler(c); sched != nil {
		resp["jobs"] = sched.GetJobInfos()
	}

	c.JSON(http.StatusOK, resp)
}

// SetRole 切换节点角色并重新登记周期任务.
//
//	@Summary	切换角色
//	@Tags		复制
//	@Accept		json
//	@Produce	json
//	@Param		req	body		SetRoleRequest	true	"目标角色"
//	@Success	200	{object}	map[string]string
//	@Router		/api/v1/chest/replica/role [put]
func SetRole(c *gin.Context) {
	coord, ok := coordinatorOf(c)
	if !ok {
		return
	}

	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if err := coord.SetRole(c.Request.Context(), req.Role); err != nil {
		abortWithError(c, err, "set role failed")

		return
	}

	c.JSON(http.StatusOK, gin.H{"role": coord.Role()})
}

// RunCollect 立即执行一次字节回收.
func RunCollect(c *gin.Context) {
	coord, ok := coordinatorOf(c)
	if !ok {
		return
	}

	report, err := coord.Collect(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "collect failed")

		return
	}

	c.JSON(http.StatusOK, report)
}

// RunCheckMissing 立即执行一次缺失扫描.
func RunCheckMissing(c *gin.Context) {
	coord, ok := coordinatorOf(c)
	if !ok {
		return
	}

	report, err := coord.CheckForMissing(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "check missing failed")

		return
	}

	c.JSON(http.StatusOK, report)
}

// RunOrphanScan 立即执行一次孤儿扫描.
func RunOrphanScan(c *gin.Context) {
	coord, ok := coordinatorOf(c)
	if !ok {
		return
	}

	report, err := coord.ScanOrphans(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "orphan scan failed")

		return
	}

	c.JSON(http.StatusOK, report)
}

// ReplicaJobs 返回所有周期任务信息.
func ReplicaJobs(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not initialized"})

		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}

// RunJob 按名称立即触发周期任务.
func RunJob(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not initialized"})

		return
	}

	if err := sched.RunNow(c.Param("name")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrJobNotFound) {
			status = http.StatusNotFound
		}

		c.JSON(status, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "job triggered"})
}
