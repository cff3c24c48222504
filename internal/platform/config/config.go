package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Challenge ChallengeConfig `mapstructure:"challenge"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	Sqlite SqliteConfig `mapstructure:"sqlite"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SqliteConfig 定义了SQLite快照数据库的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// ChallengeConfig 定义了密码挑战本身的调优参数
type ChallengeConfig struct {
	// PasswordCount 是每个用户的候选密码列表长度
	PasswordCount int `mapstructure:"passwordCount"`

	// PasswordLength 是每个候选密码的字符数
	PasswordLength int `mapstructure:"passwordLength"`

	// OffsetWindow 决定了正确密码在列表中的最小偏移量。
	// 正确密码永远不会出现在列表的前 OffsetWindow 行中。
	OffsetWindow int `mapstructure:"offsetWindow"`

	// RegistrationKey 是注册票据的HMAC密钥。留空表示开放注册。
	RegistrationKey string `mapstructure:"registrationKey"`

	// SnapshotInterval 是后台快照调度器的执行间隔
	SnapshotInterval time.Duration `mapstructure:"snapshotInterval"`
}

// Validate 在启动时检查挑战参数的合法性。
// 参数越界属于配置错误，必须阻止启动，而不是等到运行时才失败。
func (c *ChallengeConfig) Validate() error {
	if c.PasswordCount <= 0 {
		return fmt.Errorf("challenge.passwordCount 必须为正数，当前为 %d", c.PasswordCount)
	}
	if c.PasswordLength <= 0 {
		return fmt.Errorf("challenge.passwordLength 必须为正数，当前为 %d", c.PasswordLength)
	}
	if c.OffsetWindow <= 0 || c.OffsetWindow >= c.PasswordCount {
		return fmt.Errorf("challenge.offsetWindow 必须在 (0, %d) 区间内，当前为 %d", c.PasswordCount, c.OffsetWindow)
	}
	return nil
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. 设置配置文件名和类型
	v.SetConfigName("config") // 文件名 (不带扩展名)
	v.SetConfigType("yaml")   // 文件类型

	// 2. 添加配置文件搜索路径
	v.AddConfigPath("./config") // `config/config.yaml`
	v.AddConfigPath(".")        // `./config.yaml` (如果在根目录)

	// 3. 挑战参数的默认值与原始挑战保持一致
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.sqlite.path", "challenge.db")
	v.SetDefault("challenge.passwordCount", 60000)
	v.SetDefault("challenge.passwordLength", 32)
	v.SetDefault("challenge.offsetWindow", 15000)
	v.SetDefault("challenge.snapshotInterval", 10*time.Minute)

	// 4. 设置环境变量支持
	// 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:8888
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 5. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	// 6. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 7. 挑战参数是生成器正确性的前提，必须在启动时校验
	if err := cfg.Challenge.Validate(); err != nil {
		return nil, err
	}

	// 8. 将加载的配置赋值给全局变量
	Cfg = &cfg

	return Cfg, nil
}
