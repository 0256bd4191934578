// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是整个应用的配置根结构。
// 加载顺序: 默认值 -> YAML 文件 (CONFIG_FILE) -> 环境变量覆盖。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Infra    InfraConfig    `yaml:"infra"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Payment  PaymentConfig  `yaml:"payment"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type AppConfig struct {
	LogLevel string `yaml:"log_level"`
}

type InfraConfig struct {
	MysqlDSN     string      `yaml:"mysql_dsn"`
	RedisAddr    string      `yaml:"redis_addr"`
	KafkaBrokers []string    `yaml:"kafka_brokers"`
	Jaeger       JaegerConf  `yaml:"jaeger"`
	Nacos        NacosConf   `yaml:"nacos"`
	Zookeeper    ZkConf      `yaml:"zookeeper"`
}

type JaegerConf struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConf struct {
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZkConf struct {
	Servers []string `yaml:"servers"`
}

// CheckoutConfig 控制建单链路的防重参数。
type CheckoutConfig struct {
	DedupTTL        time.Duration `yaml:"dedup_ttl"`        // 请求去重缓存的存活时间
	DuplicateWindow time.Duration `yaml:"duplicate_window"` // 重复订单回查的时间窗口
}

// PaymentConfig 控制支付链路的锁与网关参数。
type PaymentConfig struct {
	LockTimeout    time.Duration `yaml:"lock_timeout"`
	GatewayBaseURL string        `yaml:"gateway_base_url"`
	GatewayTimeout time.Duration `yaml:"gateway_timeout"`
	EventTopic     string        `yaml:"event_topic"`
}

// WorkerConfig 控制异步通知投递 worker。
type WorkerConfig struct {
	Topic       string   `yaml:"topic"`
	GroupID     string   `yaml:"group_id"`
	WebhookURL  string   `yaml:"webhook_url"`
	MaxAttempts int      `yaml:"max_attempts"`
	RetryRules  []string `yaml:"retry_rules"` // 可选的 CEL 重试规则表达式
}

// Default 返回适用于本地开发的默认配置。
func Default() *Config {
	return &Config{
		App: AppConfig{LogLevel: "info"},
		Infra: InfraConfig{
			MysqlDSN:     "root:root@tcp(localhost:3306)/shopcore?charset=utf8mb4&parseTime=True&loc=Local",
			RedisAddr:    "localhost:6379",
			KafkaBrokers: []string{"localhost:9092"},
			Jaeger:       JaegerConf{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:        NacosConf{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Zookeeper:    ZkConf{Servers: []string{"localhost:2181"}},
		},
		Checkout: CheckoutConfig{
			DedupTTL:        5 * time.Second,
			DuplicateWindow: 24 * time.Hour,
		},
		Payment: PaymentConfig{
			LockTimeout:    3 * time.Second,
			GatewayBaseURL: "http://localhost:9090",
			GatewayTimeout: 10 * time.Second,
			EventTopic:     "order-payment-events",
		},
		Worker: WorkerConfig{
			Topic:       "order-payment-events",
			GroupID:     "notification-worker",
			WebhookURL:  "http://localhost:9091/webhook",
			MaxAttempts: 5,
		},
	}
}

// Load 加载配置。文件路径来自 CONFIG_FILE 环境变量，文件不存在时只用默认值。
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides 用环境变量覆盖常用的基础设施地址，方便容器化部署。
func (c *Config) applyEnvOverrides() {
	c.Infra.MysqlDSN = getEnv("MYSQL_DSN", c.Infra.MysqlDSN)
	c.Infra.RedisAddr = getEnv("REDIS_ADDR", c.Infra.RedisAddr)
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", c.Infra.Jaeger.Endpoint)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	c.Payment.GatewayBaseURL = getEnv("PAYMENT_GATEWAY_URL", c.Payment.GatewayBaseURL)
	c.Worker.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", c.Worker.WebhookURL)
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Infra.KafkaBrokers = strings.Split(brokers, ",")
	}
	if servers := os.Getenv("ZK_SERVERS"); servers != "" {
		c.Infra.Zookeeper.Servers = strings.Split(servers, ",")
	}
	if v := os.Getenv("WORKER_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Worker.MaxAttempts = n
		}
	}
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
