package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "capshuffle/internal/config"
	"capshuffle/internal/diag"
	"capshuffle/internal/pipeline"
)

var (
	version     = "dev"
	pipelineRun = pipeline.Run
)

// 退出码：0 全部成功；1 存在失败项目或运行中断；3 配置/参数错误。
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 3
)

// 工作目录下按顺序查找的默认配置文件。
var defaultConfigNames = []string{"capshuffle.yaml", "capshuffle.yml", "capshuffle.json"}

// exitError 携带退出码；err 已输出时 quiet 为 true。
type exitError struct {
	code  int
	err   error
	quiet bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = cfgpkg.LoadDotEnv(".env")

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.quiet {
			fprintf(stderr, "%v\n", ee.err)
		}
		return ee.code
	}
	// cobra 自身的参数/旗标错误
	fprintf(stderr, "参数错误: %v\n", err)
	return exitConfig
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "capshuffle",
		Short: "在 CapCut 草稿的标记区间内随机重排视频片段",
		Long: `capshuffle 读取 CapCut 项目目录中的 draft_content.json，
将时间线标记两两配对为区间，在每个区间内随机打乱主视频轨上的片段顺序，
并以紧密相接的方式重新计时后写回。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(
		newRunCmd(stdout, stderr),
		newListCmd(stdout, stderr),
		newInitConfigCmd(stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}

type runFlags struct {
	config      string
	scan        []string
	concurrency int
	dryRun      bool
	indent      int
	logLevel    string
	logFormat   string
	logDir      string
	status      bool
}

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [project-dir...]",
		Short: "重排指定项目（及 --scan 目录下发现的项目）",
		Example: `  capshuffle run ~/CapCut/Projects/demo
  capshuffle run --scan ~/CapCut/Projects -j 4 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShuffle(cmd, args, &f, stdout, stderr)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "配置文件（.json/.yaml）；缺省查找 ./capshuffle.{yaml,yml,json}")
	fl.StringSliceVar(&f.scan, "scan", nil, "扫描父目录的直接子目录作为项目（可重复、逗号分隔）")
	fl.IntVarP(&f.concurrency, "concurrency", "j", 0, "并发处理的项目数（覆盖配置）")
	fl.BoolVar(&f.dryRun, "dry-run", false, "只重排不写回")
	fl.IntVar(&f.indent, "indent", cfgpkg.DefaultIndent, "写回缩进空格数，0 为紧凑（覆盖配置）")
	fl.StringVar(&f.logLevel, "log-level", "", "日志等级 debug|info|warn|error（覆盖配置）")
	fl.StringVar(&f.logFormat, "log-format", "", "日志格式 json|console（覆盖配置）")
	fl.StringVar(&f.logDir, "log-dir", "", "日志目录（覆盖配置）")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	return cmd
}

func runShuffle(cmd *cobra.Command, args []string, f *runFlags, stdout, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()

	// CLI 覆盖：仅采用显式给出的旗标
	var over cfgpkg.Config
	over.Projects = args
	fl := cmd.Flags()
	if fl.Changed("scan") {
		over.Scan = f.scan
	}
	if fl.Changed("concurrency") {
		over.Concurrency = f.concurrency
	}
	over.DryRun = f.dryRun
	if fl.Changed("indent") {
		v := f.indent
		over.Output.Indent = &v
	}
	over.Logging = cfgpkg.Logging{Level: f.logLevel, Format: f.logFormat, Dir: f.logDir}

	cfg, err := loadConfig(f.config, over)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		_ = dumpConfig(stderr, cfg)
		return &exitError{code: exitConfig, err: fmt.Errorf("配置校验失败: %w", err)}
	}

	logger := diag.NewLogger(corrID, diag.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Dir:    cfg.Logging.Dir,
	})
	defer logger.Close()

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		logger.ErrorWith("config", diag.Classify(err), "assemble", &start, "")
		return &exitError{code: exitConfig, err: fmt.Errorf("装配失败: %w", err)}
	}
	comp.Status = diag.NewTerminal(stderr, f.status)

	logger.Debug("config", "effective", "", map[string]string{
		"projects":    strconv.Itoa(len(cfg.Projects)),
		"scan":        strings.Join(cfg.Scan, ","),
		"concurrency": strconv.Itoa(cfg.Concurrency),
		"dry_run":     strconv.FormatBool(cfg.DryRun),
		"indent":      strconv.Quote(set.Indent),
		"store":       cfg.Components.Store,
		"discoverer":  cfg.Components.Discoverer,
	})

	rep, err := pipelineRun(cmd.Context(), comp, set, logger)
	for _, out := range rep.Processed {
		fprintf(stdout, "%s\twindows=%d\tmoved=%d\tstored=%t\n", out.Project, out.Windows, out.Moved, out.Stored)
	}
	for _, fail := range rep.Failures {
		fprintf(stderr, "失败 %s\n", fail.Error())
	}
	if err != nil {
		logger.ErrorWith("pipeline", diag.Classify(err), "run aborted", &start, "")
		if errors.Is(err, context.Canceled) {
			return &exitError{code: exitFailed, err: errors.New("已中断")}
		}
		return &exitError{code: exitFailed, err: fmt.Errorf("运行失败: %w", err)}
	}
	if n := len(rep.Failures); n > 0 {
		return &exitError{code: exitFailed, err: fmt.Errorf("%d 个项目失败: %w", n, rep.Err())}
	}
	return nil
}

func newListCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list <parent-dir>...",
		Short: "列出父目录下可处理的项目目录",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cfgpkg.Config{Scan: args})
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			// list 只关心扫描根，忽略配置中的显式项目
			cfg.Projects = nil
			cfg.Scan = args
			comp, _, err := cfgpkg.Assemble(cfg)
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			failed := 0
			for _, parent := range args {
				dirs, err := comp.Discoverer.Discover(cmd.Context(), parent)
				if err != nil {
					failed++
					fprintf(stderr, "失败 %s: %v\n", parent, err)
					continue
				}
				for _, d := range dirs {
					fprintf(stdout, "%s\n", d)
				}
			}
			if failed > 0 {
				return &exitError{code: exitFailed, err: fmt.Errorf("%d 个目录无法扫描", failed), quiet: true}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "配置文件（.json/.yaml）")
	return cmd
}

func newInitConfigCmd(stdout, stderr io.Writer) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在目录中生成默认配置与 .env 模板（已存在则跳过，不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			var name string
			switch strings.ToLower(format) {
			case "json":
				name = "capshuffle.json"
			case "yaml", "yml":
				name = "capshuffle.yaml"
			default:
				return &exitError{code: exitConfig, err: fmt.Errorf("未知格式 %q（json|yaml）", format)}
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return &exitError{code: exitConfig, err: fmt.Errorf("生成默认配置失败: %w", err)}
			}
			path := filepath.Join(dir, name)
			if err := writeConfig(path, cfgpkg.DefaultTemplateConfig()); err != nil {
				if errors.Is(err, fs.ErrExist) {
					fprintf(stderr, "已存在，跳过: %s\n", path)
				} else {
					return &exitError{code: exitConfig, err: fmt.Errorf("生成默认配置失败: %w", err)}
				}
			} else {
				fprintf(stdout, "%s\n", path)
			}
			if err := cfgpkg.WriteDotEnv(filepath.Join(dir, ".env")); err != nil {
				fprintf(stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "配置格式 json|yaml")
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fprintf(stdout, "capshuffle %s\n", version)
		},
	}
}

// loadConfig 按优先级合并：CLI > ENV(.env) > 配置文件 > 默认值。
// 配置来源：--config，其次 CAPSHUFFLE_CONFIG_JSON / CAPSHUFFLE_CONFIG_FILE，最后工作目录下的默认文件。
func loadConfig(path string, cli cfgpkg.Config) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()

	raw := ""
	if path == "" {
		raw = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON")
	}
	if path == "" && raw == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" && raw == "" {
		path = findDefaultConfig()
	}
	switch {
	case raw != "":
		base, err := cfgpkg.LoadJSON("", []byte(raw))
		if err != nil {
			return cfg, fmt.Errorf("配置解析失败: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	case path != "":
		base, err := cfgpkg.LoadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("配置解析失败: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	env, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, fmt.Errorf("环境变量解析失败: %w", err)
	}
	cfg = cfgpkg.Merge(cfg, env)
	return cfgpkg.Merge(cfg, cli), nil
}

func findDefaultConfig() string {
	for _, name := range defaultConfigNames {
		if st, err := os.Stat(name); err == nil && st.Mode().IsRegular() {
			return name
		}
	}
	return ""
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	fprintf(w, "有效配置:\n%s\n", b)
	return nil
}

// writeConfig 写出配置（不覆盖已存在文件）；.yaml/.yml 输出 YAML，其余输出 JSON。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		// 经 JSON 中转，保证 options 子树以映射形式输出
		var tree any
		if err := json.Unmarshal(b, &tree); err != nil {
			return err
		}
		if b, err = yaml.Marshal(tree); err != nil {
			return err
		}
	} else {
		b = append(b, '\n')
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
