package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置不应报错: %v", err)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Fatalf("默认存储应为 file, 实际 %s", cfg.Storage.Backend)
	}
	if cfg.Scheduler.Interval != 10*time.Minute {
		t.Fatalf("默认间隔应为 10m, 实际 %s", cfg.Scheduler.Interval)
	}
	if got := cfg.ResolveLeagues(nil); len(got) != 1 || got[0] != "Standard" {
		t.Fatalf("默认联赛不正确: %v", got)
	}
	if rate, err := cfg.Stats.Rate(); err != nil || !rate.IsZero() {
		t.Fatalf("默认不应启用汇率换算: %s %v", rate, err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  backend: memory
feed:
  leagues: ["Settlers", "settlers ", "Standard"]
stats:
  preferred_currency: divine
  exchange_rate: "180.5"
  timezone: UTC
scheduler:
  interval: 90s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	t.Setenv("TRADEARCHIVE_EXPORT_MAX_ROWS", "25")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Fatalf("存储后端应为 memory, 实际 %s", cfg.Storage.Backend)
	}
	if cfg.Scheduler.Interval != 90*time.Second {
		t.Fatalf("间隔解析错误: %s", cfg.Scheduler.Interval)
	}
	if cfg.Export.MaxRows != 25 {
		t.Fatalf("环境变量应覆盖 export.max_rows, 实际 %d", cfg.Export.MaxRows)
	}
	if got := cfg.ResolveLeagues(nil); len(got) != 2 {
		t.Fatalf("联赛应去重, 实际 %v", got)
	}
	if got := cfg.ResolveLeagues([]string{"Hardcore"}); len(got) != 1 || got[0] != "Hardcore" {
		t.Fatalf("命令行联赛应覆盖配置, 实际 %v", got)
	}
	rate, err := cfg.Stats.Rate()
	if err != nil || rate.String() != "180.5" {
		t.Fatalf("汇率解析错误: %s %v", rate, err)
	}
	loc, err := cfg.Stats.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("时区解析错误: %v %v", loc, err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Storage:   StorageConfig{Backend: BackendMemory},
			Scheduler: SchedulerConfig{Interval: time.Minute},
			Export:    ExportConfig{MaxRows: 10},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}

	cases := map[string]func(c *Config){
		"postgres 无 dsn": func(c *Config) { c.Storage.Backend = BackendPostgres },
		"未知后端":          func(c *Config) { c.Storage.Backend = "s3" },
		"file 无目录":      func(c *Config) { c.Storage.Backend = BackendFile },
		"负容量":           func(c *Config) { c.Storage.MaxPayloadBytes = -1 },
		"非法汇率":          func(c *Config) { c.Stats.ExchangeRate = "abc" },
		"负汇率":           func(c *Config) { c.Stats.ExchangeRate = "-2" },
		"非法时区":          func(c *Config) { c.Stats.Timezone = "Mars/Base" },
		"零间隔":           func(c *Config) { c.Scheduler.Interval = 0 },
		"telegram 缺 token": func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "1"
		},
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: 应返回错误", name)
		}
	}
}
