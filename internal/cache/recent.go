package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// RecentRecipients 最近使用的收件人地址缓存
//
// 为前端的收件人补全服务：排队一封邮件就刷新一次对应地址。
// 纯内存、带 TTL，进程重启即清空（与别名注册表同样的取舍）。
type RecentRecipients struct {
	mu      sync.Mutex
	entries map[string]time.Time // 地址 -> 最近使用时间
	maxSize int
	ttl     time.Duration
}

// NewRecentRecipients 创建收件人缓存
//
// 参数:
//   - maxSize: 保留的最大地址数，超出时淘汰最久未用的
//   - ttl: 地址的保鲜时长
func NewRecentRecipients(maxSize int, ttl time.Duration) *RecentRecipients {
	return &RecentRecipients{
		entries: make(map[string]time.Time),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Touch 记录一次地址使用
func (r *RecentRecipients) Touch(email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[email] = time.Now()
	r.evictLocked()
}

// List 返回按最近使用排序的地址列表，过期条目顺带清理
func (r *RecentRecipients) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	type entry struct {
		email string
		used  time.Time
	}
	alive := make([]entry, 0, len(r.entries))
	for email, used := range r.entries {
		if now.Sub(used) > r.ttl {
			delete(r.entries, email)
			continue
		}
		alive = append(alive, entry{email, used})
	}

	sort.Slice(alive, func(i, j int) bool {
		return alive[i].used.After(alive[j].used)
	})

	result := make([]string, len(alive))
	for i, e := range alive {
		result[i] = e.email
	}
	return result
}

// evictLocked 超出容量时淘汰最久未用的地址
func (r *RecentRecipients) evictLocked() {
	for len(r.entries) > r.maxSize {
		var oldest string
		var oldestTime time.Time
		for email, used := range r.entries {
			if oldest == "" || used.Before(oldestTime) {
				oldest = email
				oldestTime = used
			}
		}
		delete(r.entries, oldest)
	}
}
