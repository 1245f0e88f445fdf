package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobCollect      = "chest.collect"
	JobCheckMissing = "chest.check_missing"
	JobOrphanScan   = "chest.orphan_scan"
	JobClientSync   = "chest.client_sync"
)

// ReplicaJobs 副本角色运行的任务.
var ReplicaJobs = []string{JobCollect, JobCheckMissing, JobOrphanScan}

// ClientJobs 客户端角色运行的任务.
var ClientJobs = []string{JobClientSync}
