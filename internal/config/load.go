package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix 为环境变量覆盖的统一前缀。
const EnvPrefix = "CAPSHUFFLE_"

// DefaultIndent 为写回时的默认缩进空格数。
const DefaultIndent = 2

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	indent := DefaultIndent
	return Config{
		Concurrency: 1,
		Output:      Output{Indent: &indent},
		Logging:     Logging{Level: "info", Format: "json"},
		Components: Components{
			Store:      "fs",
			Discoverer: "fs",
		},
	}
}

// LoadFile 按扩展名解析配置文件：.yaml/.yml 走 YAML，其余按 JSON。
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(b)
	default:
		return LoadJSON("", b)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadYAML 解析 YAML 配置。先转为等价 JSON，再走严格 JSON 解码，
// 因此未知字段同样被拒绝，options 子树原样保留为 JSON。
func LoadYAML(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("config: yaml: %w", err)
	}
	if doc == nil {
		return Config{}, nil
	}
	if _, ok := doc.(map[string]any); !ok {
		return Config{}, fmt.Errorf("config: yaml: top-level value must be a mapping, got %T", doc)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("config: yaml: %w", err)
	}
	return LoadJSON("", b)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Projects) > 0 {
		out.Projects = cloneStrings(over.Projects)
	}
	if len(over.Scan) > 0 {
		out.Scan = cloneStrings(over.Scan)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	// DryRun 只能被打开，不能被后续来源关闭
	if over.DryRun {
		out.DryRun = true
	}
	if over.Output.Indent != nil {
		v := *over.Output.Indent
		out.Output.Indent = &v
	}

	if v := strings.TrimSpace(over.Logging.Level); v != "" {
		out.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(over.Logging.Format); v != "" {
		out.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(over.Logging.Dir); v != "" {
		out.Logging.Dir = v
	}

	// 组件名（空不覆盖）
	if over.Components.Store != "" {
		out.Components.Store = over.Components.Store
	}
	if over.Components.Discoverer != "" {
		out.Components.Discoverer = over.Components.Discoverer
	}

	// Options（完整替换对应键）
	if len(over.Options.Store) > 0 {
		out.Options.Store = cloneRaw(over.Options.Store)
	}
	if len(over.Options.Discoverer) > 0 {
		out.Options.Discoverer = cloneRaw(over.Options.Discoverer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 CAPSHUFFLE_；集合外的键忽略；数值非法时报错。
// 支持：PROJECTS, SCAN（逗号分隔）, CONCURRENCY, DRY_RUN, OUTPUT_INDENT,
// LOG_LEVEL, LOG_FORMAT, LOG_DIR, COMPONENTS_{STORE,DISCOVERER}, OPTIONS_{STORE,DISCOVERER}_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空配置文件中的值
			continue
		}
		switch key {
		case "PROJECTS":
			over.Projects = splitComma(val)
		case "SCAN":
			over.Scan = splitComma(val)
		case "CONCURRENCY":
			v, err := strconv.Atoi(val)
			if err != nil {
				return over, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
			}
			over.Concurrency = v
		case "DRY_RUN":
			v, err := strconv.ParseBool(val)
			if err != nil {
				return over, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
			}
			over.DryRun = v
		case "OUTPUT_INDENT":
			v, err := strconv.Atoi(val)
			if err != nil {
				return over, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
			}
			over.Output.Indent = &v
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_FORMAT":
			over.Logging.Format = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "COMPONENTS_STORE":
			over.Components.Store = val
		case "COMPONENTS_DISCOVERER":
			over.Components.Discoverer = val
		case "OPTIONS_STORE_JSON":
			over.Options.Store = json.RawMessage(val)
		case "OPTIONS_DISCOVERER_JSON":
			over.Options.Discoverer = json.RawMessage(val)
		}
	}
	return over, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
