package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

// 解析完整 JSON 与等价 YAML，结果一致
func TestLoadFileJSONAndYAML(t *testing.T) {
	fromJSON, err := LoadFile("testdata/basic.json")
	if err != nil {
		t.Fatalf("加载 JSON 失败: %v", err)
	}
	fromYAML, err := LoadFile("testdata/basic.yaml")
	if err != nil {
		t.Fatalf("加载 YAML 失败: %v", err)
	}
	if fromJSON.Concurrency != 3 || !fromJSON.DryRun || *fromJSON.Output.Indent != 4 {
		t.Fatalf("字段映射错误: %+v", fromJSON)
	}
	if fromJSON.Logging.Format != "console" || fromJSON.Components.Store != "fs" {
		t.Fatalf("字段映射错误: %+v", fromJSON)
	}

	// options 子树按语义比较（YAML 转出的 JSON 键序/空白可能不同）
	var a, b any
	require.NoError(t, json.Unmarshal(fromJSON.Options.Store, &a))
	require.NoError(t, json.Unmarshal(fromYAML.Options.Store, &b))
	require.Equal(t, a, b)
	fromJSON.Options, fromYAML.Options = Options{}, Options{}
	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Fatalf("JSON/YAML 结果不一致 (-json +yaml):\n%s", diff)
	}
	if err := Validate(fromJSON); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
}

func TestLoadUnknownField(t *testing.T) {
	if _, err := LoadJSON("", []byte(`{"unknown":1}`)); err == nil {
		t.Fatalf("JSON 未知字段应当返回错误")
	}
	if _, err := LoadYAML([]byte("projects: [a]\nbogus: 1\n")); err == nil {
		t.Fatalf("YAML 未知字段应当返回错误")
	}
	if _, err := LoadYAML([]byte("- a\n- b\n")); err == nil {
		t.Fatalf("YAML 顶层非映射应当返回错误")
	}
	if _, err := LoadJSON("", nil); err == nil {
		t.Fatalf("无来源应当返回错误")
	}
}

func TestLoadJSONFromPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"projects":["x"]}`), 0o644))
	cfg, err := LoadJSON(p, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, cfg.Projects)

	cfg, err = LoadYAML(nil)
	require.NoError(t, err)
	require.Empty(t, cfg.Projects)
}

func TestEnvOverlay(t *testing.T) {
	env := []string{
		"CAPSHUFFLE_PROJECTS=a, b",
		"CAPSHUFFLE_SCAN=root",
		"CAPSHUFFLE_CONCURRENCY=3",
		"CAPSHUFFLE_DRY_RUN=true",
		"CAPSHUFFLE_OUTPUT_INDENT=0",
		"CAPSHUFFLE_LOG_LEVEL=debug",
		"CAPSHUFFLE_LOG_FORMAT=console",
		"CAPSHUFFLE_LOG_DIR=/tmp/l",
		"CAPSHUFFLE_COMPONENTS_STORE=fs",
		`CAPSHUFFLE_OPTIONS_STORE_JSON={"backup":"copy"}`,
		"CAPSHUFFLE_UNKNOWN=1",
		"CAPSHUFFLE_COMPONENTS_DISCOVERER=",
		"OTHER=1",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay 错误: %v", err)
	}
	want := Config{
		Projects:    []string{"a", "b"},
		Scan:        []string{"root"},
		Concurrency: 3,
		DryRun:      true,
		Output:      Output{Indent: intp(0)},
		Logging:     Logging{Level: "debug", Format: "console", Dir: "/tmp/l"},
		Components:  Components{Store: "fs"},
		Options:     Options{Store: json.RawMessage(`{"backup":"copy"}`)},
	}
	if diff := cmp.Diff(want, over); diff != "" {
		t.Fatalf("覆盖结果不正确 (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"CAPSHUFFLE_CONCURRENCY=x", "CAPSHUFFLE_DRY_RUN=maybe", "CAPSHUFFLE_OUTPUT_INDENT=two"} {
		if _, err := EnvOverlay([]string{bad}); err == nil || !strings.Contains(err.Error(), "env CAPSHUFFLE_") {
			t.Fatalf("%s 应当报错, got %v", bad, err)
		}
	}
}

// 优先级：后者覆盖前者；空值不覆盖；DryRun 只能被打开
func TestMergePrecedence(t *testing.T) {
	base := Defaults()
	file := Config{Projects: []string{"f"}, Concurrency: 2, DryRun: true, Logging: Logging{Level: "WARN"}}
	env := Config{Concurrency: 5, Output: Output{Indent: intp(0)}}
	cli := Config{Projects: []string{"c1", "c2"}}

	got := Merge(Merge(Merge(base, file), env), cli)
	require.Equal(t, []string{"c1", "c2"}, got.Projects)
	require.Equal(t, 5, got.Concurrency)
	require.True(t, got.DryRun)
	require.Equal(t, 0, *got.Output.Indent)
	require.Equal(t, "warn", got.Logging.Level)
	require.Equal(t, "json", got.Logging.Format)
	require.Equal(t, "fs", got.Components.Store)

	// 合并结果不与来源共享底层数组
	cli.Projects[0] = "mutated"
	require.Equal(t, "c1", got.Projects[0])
	// Defaults 的缩进指针未被修改
	require.Equal(t, DefaultIndent, *Defaults().Output.Indent)
}

func TestValidate(t *testing.T) {
	ok := Defaults()
	ok.Projects = []string{"p"}
	require.NoError(t, Validate(ok))

	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"no inputs", func(c *Config) { c.Projects = nil }, "no projects"},
		{"blank project", func(c *Config) { c.Projects = []string{"  "} }, "blank"},
		{"empty project", func(c *Config) { c.Projects = []string{""} }, "projects"},
		{"concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"indent", func(c *Config) { c.Output.Indent = intp(9) }, "indent"},
		{"level", func(c *Config) { c.Logging.Level = "trace" }, "level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "format"},
		{"store", func(c *Config) { c.Components.Store = "s3" }, `store "s3" not registered`},
		{"discoverer", func(c *Config) { c.Components.Discoverer = "git" }, `discoverer "git" not registered`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := ok
			c.Projects = []string{"p"}
			tc.mut(&c)
			err := Validate(c)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("应返回 ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("错误信息应包含 %q, got %v", tc.want, err)
			}
		})
	}
}

func TestAssemble(t *testing.T) {
	cfg := Defaults()
	cfg.Projects = []string{"p"}
	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	require.NotNil(t, comp.Store)
	require.Nil(t, comp.Discoverer, "无扫描时不构造 Discoverer")
	require.Equal(t, "  ", set.Indent)
	require.Equal(t, 1, set.Concurrency)

	cfg.Scan = []string{"root"}
	cfg.Output.Indent = intp(0)
	cfg.DryRun = true
	cfg.Options.Discoverer = json.RawMessage(`{"exclude_dir_names":["tmp"]}`)
	comp, set, err = Assemble(cfg)
	require.NoError(t, err)
	require.NotNil(t, comp.Discoverer)
	require.Equal(t, "", set.Indent)
	require.True(t, set.DryRun)
	require.Equal(t, []string{"root"}, set.Scan)

	// 组件 Options 非法时以 ErrInvalid 返回
	cfg.Options.Store = json.RawMessage(`{"backup":"zip"}`)
	_, _, err = Assemble(cfg)
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), `store "fs"`)
}

func TestIndentString(t *testing.T) {
	require.Equal(t, "  ", IndentString(nil))
	require.Equal(t, "", IndentString(intp(0)))
	require.Equal(t, "    ", IndentString(intp(4)))
}

// 模板配置可直接通过校验与装配
func TestDefaultTemplateConfig(t *testing.T) {
	cfg := DefaultTemplateConfig()
	b, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	back, err := LoadJSON("", b)
	require.NoError(t, err)
	_, _, err = Assemble(back)
	require.NoError(t, err)

	env := DotEnvTemplate()
	for _, k := range dotenvKeys {
		require.Contains(t, env, "# "+EnvPrefix+k.Key+"=\n")
	}
	// 模板中全部为注释，直接加载不产生覆盖
	var lines []string
	for _, l := range strings.Split(env, "\n") {
		if l != "" && !strings.HasPrefix(l, "#") {
			lines = append(lines, l)
		}
	}
	require.Empty(t, lines)
}

func TestSplitComma(t *testing.T) {
	parts := splitComma("a, b , ,c")
	if len(parts) != 3 || parts[1] != "b" {
		t.Fatalf("splitComma 结果错误: %v", parts)
	}
	require.Nil(t, splitComma(""))
}
