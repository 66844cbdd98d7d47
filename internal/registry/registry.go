// Package registry 维护上传来源到短别名的映射。
//
// 别名形如 H1、H2 ...，按首次出现顺序分配，进程内稳定。
// 映射只存在于内存中，进程重启后重新计数 —— 这是既定取舍而非缺陷：
// 客户端可通过 /api/files/health 接口重新学习自己的别名。
package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registration 一条来源注册信息
type Registration struct {
	IP    string `json:"ip"`
	Alias string `json:"alias"`
}

// AliasRegistry 来源别名注册表
//
// 查找-分配-写入必须是同一个临界区，否则并发请求可能为同一来源
// 分配两个别名。计数器只增不减，别名一经分配不再变更。
type AliasRegistry struct {
	mu      sync.Mutex
	aliases map[string]string
	order   []string // 按首次注册顺序保存 originKey
	next    int
	logger  *zap.Logger
}

// NewAliasRegistry 创建别名注册表
func NewAliasRegistry(logger *zap.Logger) *AliasRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AliasRegistry{
		aliases: make(map[string]string),
		next:    1,
		logger:  logger,
	}
}

// Resolve 返回来源对应的别名，不存在则分配下一个
func (r *AliasRegistry) Resolve(originKey string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if alias, ok := r.aliases[originKey]; ok {
		return alias
	}

	alias := fmt.Sprintf("H%d", r.next)
	r.next++
	r.aliases[originKey] = alias
	r.order = append(r.order, originKey)

	r.logger.Info("new headset registered",
		zap.String("origin", originKey),
		zap.String("alias", alias),
	)
	return alias
}

// Lookup 只查询不分配
func (r *AliasRegistry) Lookup(originKey string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alias, ok := r.aliases[originKey]
	return alias, ok
}

// Snapshot 返回当前全部注册信息的快照，按首次注册顺序排列
func (r *AliasRegistry) Snapshot() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Registration, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, Registration{IP: key, Alias: r.aliases[key]})
	}
	return result
}
