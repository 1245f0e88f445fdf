package backend

import (
	"container/list"
	"slices"
	"sync"
	"time"
)

// Entry 索引中的一个已提交对象.
type Entry struct {
	Hash  string
	Size  int64
	Atime time.Time
}

// Index 按访问时间升序排列的对象索引，维护总字节数并给出超出容量时的淘汰顺序.
// 读取对象不会刷新访问时间.
type Index struct {
	mu      sync.Mutex
	order   *list.List // front 最旧
	items   map[string]*list.Element
	total   int64
	maxSize int64
}

// NewIndex 创建索引，maxSize 为 0 表示不限制.
func NewIndex(maxSize int64) *Index {
	return &Index{
		order:   list.New(),
		items:   make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

// Load 批量载入启动扫描结果，按 atime 升序插入.
func (x *Index) Load(entries []Entry) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return a.Atime.Compare(b.Atime)
	})

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, e := range sorted {
		x.insertLocked(e)
	}
}

// Add 追加一个最新的对象，已存在时不重复计数并返回 false.
func (x *Index) Add(hash string, size int64, atime time.Time) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.insertLocked(Entry{Hash: hash, Size: size, Atime: atime})
}

func (x *Index) insertLocked(e Entry) bool {
	if _, ok := x.items[e.Hash]; ok {
		return false
	}

	x.items[e.Hash] = x.order.PushBack(e)
	x.total += e.Size

	return true
}

// Remove 移除对象并扣减总字节数.
func (x *Index) Remove(hash string) (Entry, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	el, ok := x.items[hash]
	if !ok {
		return Entry{}, false
	}

	return x.removeLocked(el), true
}

func (x *Index) removeLocked(el *list.Element) Entry {
	e, _ := x.order.Remove(el).(Entry)
	delete(x.items, e.Hash)
	x.total -= e.Size

	return e
}

// Contains 判断对象是否在索引中.
func (x *Index) Contains(hash string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, ok := x.items[hash]

	return ok
}

// TakeOverBudget 在 maxSize>0 且总量超限时从最旧处弹出条目，直到满足容量或索引为空.
// 返回的条目已从索引移除，由调用方删除物理字节.
func (x *Index) TakeOverBudget() []Entry {
	x.mu.Lock()
	defer x.mu.Unlock()

	var victims []Entry

	for x.maxSize > 0 && x.total > x.maxSize {
		front := x.order.Front()
		if front == nil {
			break
		}

		victims = append(victims, x.removeLocked(front))
	}

	return victims
}

// SetMaxSize 设置容量上限.
func (x *Index) SetMaxSize(maxSize int64) {
	x.mu.Lock()
	x.maxSize = maxSize
	x.mu.Unlock()
}

// Snapshot 返回按 atime 升序排列的哈希快照.
func (x *Index) Snapshot() []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	keys := make([]string, 0, x.order.Len())
	for el := x.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(Entry).Hash)
	}

	return keys
}

// Stats 返回索引统计.
func (x *Index) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()

	return Stats{TotalSize: x.total, MaxSize: x.maxSize, Count: x.order.Len()}
}

// Stats 后端容量统计.
type Stats struct {
	TotalSize int64 `json:"totalSize"`
	MaxSize   int64 `json:"maxSize"`
	Count     int   `json:"count"`
}
