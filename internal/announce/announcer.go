// Package announce 通过 mDNS 在局域网内广播服务位置。
package announce

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const serviceType = "_neonbrush._tcp"

// Announcer mDNS 服务广播器
type Announcer struct {
	server *zeroconf.Server
	logger *zap.Logger
}

// Start 注册 mDNS 服务记录
//
// 局域网内的客户端据此发现服务器，无需手工配置地址。
func Start(instance string, port int, logger *zap.Logger) (*Announcer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if instance == "" {
		instance = "neonbrush"
	}

	server, err := zeroconf.Register(instance, serviceType, "local.", port,
		[]string{"path=/api/files"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mdns service: %w", err)
	}

	logger.Info("mdns service announced",
		zap.String("instance", instance),
		zap.String("type", serviceType),
		zap.Int("port", port),
	)

	return &Announcer{server: server, logger: logger}, nil
}

// Shutdown 撤销 mDNS 服务记录
func (a *Announcer) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.logger.Info("mdns service withdrawn")
}
