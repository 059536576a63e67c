// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	StaticDir string `json:"static_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 生成管线后端配置
	PipelineBaseURL string `json:"pipeline_base_url"`
	PipelineAPIKey  string `json:"pipeline_api_key,omitempty"`

	// 项目状态轮询间隔（秒），固定间隔、无退避
	PollIntervalSeconds int `json:"poll_interval_seconds"`

	// 对外分享链接的基础地址（二维码用）
	ShareBaseURL string `json:"share_base_url"`

	// 生成任务历史数据库路径
	StatsDBPath string `json:"stats_db_path"`
}

// Config 存储从环境变量读到的基础配置
type Config struct {
	Port            string
	DataDir         string
	StaticDir       string
	LogDir          string
	DebugMode       bool
	PipelineBaseURL string
	PipelineAPIKey  string
	PollInterval    time.Duration
	ShareBaseURL    string
	StatsDBPath     string
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		DataDir:         getEnvPath("DATA_DIR", "data"),
		StaticDir:       getEnvPath("STATIC_DIR", "static"),
		LogDir:          getEnvPath("LOG_DIR", "logs"),
		DebugMode:       getEnvBool("DEBUG_MODE", true),
		PipelineBaseURL: getEnv("PIPELINE_API_URL", "http://localhost:8000"),
		PipelineAPIKey:  getEnv("PIPELINE_API_KEY", ""),
		PollInterval:    time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)) * time.Second,
		ShareBaseURL:    getEnv("SHARE_BASE_URL", "http://localhost:8080"),
		StatsDBPath:     getEnv("STATS_DB_PATH", filepath.Join("data", "stats.db")),
	}

	if config.PipelineAPIKey == "" {
		// 只记录警告，不返回错误；后端未启用鉴权时属于正常情况
		log.Println("警告: 未设置 PIPELINE_API_KEY，请求将不携带鉴权头")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = appConfigFromBase(baseConfig)

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 基础部分始终以环境变量为准，只保留文件中的管线设置
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.StaticDir = baseConfig.StaticDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				if savedConfig.PipelineAPIKey == "" {
					savedConfig.PipelineAPIKey = baseConfig.PipelineAPIKey
				}
				if savedConfig.PipelineBaseURL == "" {
					savedConfig.PipelineBaseURL = baseConfig.PipelineBaseURL
				}
				if savedConfig.PollIntervalSeconds <= 0 {
					savedConfig.PollIntervalSeconds = int(baseConfig.PollInterval / time.Second)
				}

				currentConfig = &savedConfig
			}
		}
	}

	return SaveConfig()
}

func appConfigFromBase(baseConfig *Config) *AppConfig {
	return &AppConfig{
		Port:                baseConfig.Port,
		DataDir:             baseConfig.DataDir,
		StaticDir:           baseConfig.StaticDir,
		LogDir:              baseConfig.LogDir,
		DebugMode:           baseConfig.DebugMode,
		PipelineBaseURL:     baseConfig.PipelineBaseURL,
		PipelineAPIKey:      baseConfig.PipelineAPIKey,
		PollIntervalSeconds: int(baseConfig.PollInterval / time.Second),
		ShareBaseURL:        baseConfig.ShareBaseURL,
		StatsDBPath:         baseConfig.StatsDBPath,
	}
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return appConfigFromBase(baseConfig)
	}

	configCopy := *currentConfig
	return &configCopy
}

// PollInterval 返回轮询间隔
func (c *AppConfig) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// UpdatePipelineConfig 更新生成管线后端配置
func UpdatePipelineConfig(baseURL, apiKey string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	if baseURL != "" {
		currentConfig.PipelineBaseURL = baseURL
	}
	currentConfig.PipelineAPIKey = apiKey

	return SaveConfig()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
