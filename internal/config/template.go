package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 扫描当前目录下的直接子目录；
// - 组件名采用仓库内置实现；
// - 选项包含全部键，值为安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Scan:        []string{"."},
		Concurrency: 4,
		Output:      d.Output,
		Logging:     Logging{Level: "info", Format: "json", Dir: "logs"},
		Components:  d.Components,
	}
	cfg.Options.Store = json.RawMessage(`{
  "file_name": "draft_content.json",
  "atomic": true,
  "backup": "",
  "perm_file": 0,
  "buf_size": 65536
}`)
	cfg.Options.Discoverer = json.RawMessage(`{
  "file_name": "draft_content.json",
  "exclude_dir_names": [".git", "node_modules"]
}`)
	return cfg
}

// dotenvKeys 为 .env 模板中的键（不含前缀），与 EnvOverlay 保持一致。
var dotenvKeys = []struct{ Key, Hint string }{
	{"PROJECTS", "逗号分隔的项目目录"},
	{"SCAN", "逗号分隔的父目录（扫描直接子目录）"},
	{"CONCURRENCY", "并发项目数"},
	{"DRY_RUN", "true 时只重排不写回"},
	{"OUTPUT_INDENT", "写回缩进空格数，0 为紧凑"},
	{"LOG_LEVEL", "debug|info|warn|error"},
	{"LOG_FORMAT", "json|console"},
	{"LOG_DIR", "日志目录"},
	{"COMPONENTS_STORE", "存储实现名"},
	{"COMPONENTS_DISCOVERER", "发现实现名"},
	{"OPTIONS_STORE_JSON", "存储 Options（JSON）"},
	{"OPTIONS_DISCOVERER_JSON", "发现 Options（JSON）"},
}

// DotEnvTemplate 返回 .env 模板文本：所有键均注释掉，取消注释即生效。
func DotEnvTemplate() string {
	var b strings.Builder
	b.WriteString("# capshuffle 环境变量（优先级：CLI > ENV > 配置文件 > 默认值）\n")
	fmt.Fprintf(&b, "# %sCONFIG_FILE=capshuffle.json\n", EnvPrefix)
	for _, k := range dotenvKeys {
		fmt.Fprintf(&b, "# %s\n# %s%s=\n", k.Hint, EnvPrefix, k.Key)
	}
	return b.String()
}
