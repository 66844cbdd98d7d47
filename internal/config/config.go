package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingSMTPCredentials SMTP 账号或密码未配置
var ErrMissingSMTPCredentials = errors.New("smtp credentials not configured")

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// StorageConfig 定义文件与队列的落盘位置
type StorageConfig struct {
	UploadsDir    string // 上传文件目录，默认 "uploads"
	MetadataDir   string // 元数据记录目录，默认 "metadata"
	DataDir       string // 队列等数据文档目录，默认 "data"
	MaxUploadSize int64  // 单次上传大小上限（字节），默认 100MB
}

// QueueFile 返回邮件队列文档的完整路径
func (s StorageConfig) QueueFile() string {
	return filepath.Join(s.DataDir, "email_queue.json")
}

// SMTPConfig 定义外发邮件中继的连接配置
//
// 由队列处理器消费；在线服务本身不连接邮件中继。
type SMTPConfig struct {
	Host     string        // 中继地址，默认 "smtp.gmail.com"
	Port     int           // 中继端口，默认 587
	User     string        // 登录账号，同时作为发件人地址
	Password string        // 登录密码
	UseTLS   bool          // 是否使用 STARTTLS，默认 true
	Timeout  time.Duration // 连接与命令超时，默认 30s
}

// Validate 校验投递所需的凭证
//
// dryRun 模式下缺失凭证只是告警级别的问题；真实投递则是硬性前置条件。
func (s SMTPConfig) Validate(dryRun bool) error {
	if dryRun {
		return nil
	}
	if s.User == "" || s.Password == "" {
		return ErrMissingSMTPCredentials
	}
	return nil
}

// ProcessorConfig 定义队列处理器的行为参数
type ProcessorConfig struct {
	SendDelay      time.Duration // 两次投递之间的固定间隔（照顾中继限速），默认 1s
	RetentionHours int           // 任务保留窗口（小时），0 表示不清理，默认 0
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空只输出到控制台
}

// AnnounceConfig 定义局域网服务通告 (mDNS) 配置
type AnnounceConfig struct {
	Enabled  bool   // 是否通告服务，默认 true
	Instance string // 服务实例名，默认 "neonbrush"
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig    // HTTP 服务器配置
	Storage   StorageConfig   // 存储路径配置
	SMTP      SMTPConfig      // 外发邮件中继配置
	Processor ProcessorConfig // 队列处理器配置
	CORS      CORSConfig      // 跨域配置
	Log       LogConfig       // 日志配置
	Announce  AnnounceConfig  // 服务通告配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: FILESERVER_
// 例如: FILESERVER_SERVER_PORT, FILESERVER_SMTP_HOST
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，.env 是可选的）
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("fileserver")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.uploads_dir", "uploads")
	v.SetDefault("storage.metadata_dir", "metadata")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.max_upload_size", int64(100*1024*1024))
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.pass", "")
	v.SetDefault("smtp.tls", true)
	v.SetDefault("smtp.timeout", "30s")
	v.SetDefault("processor.send_delay", "1s")
	v.SetDefault("processor.retention_hours", 0)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("announce.enabled", true)
	v.SetDefault("announce.instance", "neonbrush")

	smtpTimeout, err := time.ParseDuration(v.GetString("smtp.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid smtp.timeout: %w", err)
	}

	sendDelay, err := time.ParseDuration(v.GetString("processor.send_delay"))
	if err != nil {
		return nil, fmt.Errorf("invalid processor.send_delay: %w", err)
	}

	maxUpload := v.GetInt64("storage.max_upload_size")
	if maxUpload <= 0 {
		return nil, fmt.Errorf("storage.max_upload_size must be positive")
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	retention := v.GetInt("processor.retention_hours")
	if retention < 0 {
		return nil, fmt.Errorf("processor.retention_hours must not be negative")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Storage: StorageConfig{
			UploadsDir:    v.GetString("storage.uploads_dir"),
			MetadataDir:   v.GetString("storage.metadata_dir"),
			DataDir:       v.GetString("storage.data_dir"),
			MaxUploadSize: maxUpload,
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			User:     v.GetString("smtp.user"),
			Password: v.GetString("smtp.pass"),
			UseTLS:   v.GetBool("smtp.tls"),
			Timeout:  smtpTimeout,
		},
		Processor: ProcessorConfig{
			SendDelay:      sendDelay,
			RetentionHours: retention,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			LogFile:     v.GetString("log.file"),
		},
		Announce: AnnounceConfig{
			Enabled:  v.GetBool("announce.enabled"),
			Instance: v.GetString("announce.instance"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载当前目录的 .env 文件
//
// 已存在的环境变量优先级更高，不会被 .env 覆盖。
func loadEnvFile() {
	_ = godotenv.Load(".env")
}
