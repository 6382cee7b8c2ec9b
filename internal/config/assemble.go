package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"capshuffle/internal/pipeline"
	"capshuffle/pkg/registry"
)

// ErrInvalid 标记配置校验失败（CLI 以此区分退出码）。
var ErrInvalid = errors.New("config invalid")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息中使用 JSON 键名，便于对照配置文件
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %q", ErrInvalid, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(cfg.Projects) == 0 && len(cfg.Scan) == 0 {
		return fmt.Errorf("%w: no projects or scan roots given", ErrInvalid)
	}
	for _, p := range append(cloneStrings(cfg.Projects), cfg.Scan...) {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: project path cannot be blank", ErrInvalid)
		}
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults()
	if name := effName(cfg.Components.Store, d.Components.Store); registry.Store[name] == nil {
		return fmt.Errorf("%w: store %q not registered (have %v)", ErrInvalid, name, registry.Names(registry.Store))
	}
	if name := effName(cfg.Components.Discoverer, d.Components.Discoverer); registry.Discoverer[name] == nil {
		return fmt.Errorf("%w: discoverer %q not registered (have %v)", ErrInvalid, name, registry.Names(registry.Discoverer))
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// 返回的 Components 不含 Status 与 NewPermuter，由调用方按需填充。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults()
	sn := effName(cfg.Components.Store, d.Components.Store)
	dn := effName(cfg.Components.Discoverer, d.Components.Discoverer)

	st, err := registry.Store[sn](cfg.Options.Store)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("%w: store %q: %v", ErrInvalid, sn, err)
	}
	comp := pipeline.Components{Store: st}
	// Discoverer 仅在需要扫描时构造
	if len(cfg.Scan) > 0 {
		disc, err := registry.Discoverer[dn](cfg.Options.Discoverer)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("%w: discoverer %q: %v", ErrInvalid, dn, err)
		}
		comp.Discoverer = disc
	}

	set := pipeline.Settings{
		Projects:    cloneStrings(cfg.Projects),
		Scan:        cloneStrings(cfg.Scan),
		Concurrency: cfg.Concurrency,
		DryRun:      cfg.DryRun,
		Indent:      IndentString(cfg.Output.Indent),
	}
	return comp, set, nil
}

// IndentString 将缩进空格数换算为编码器使用的缩进串；nil 取默认值。
func IndentString(n *int) string {
	if n == nil {
		return strings.Repeat(" ", DefaultIndent)
	}
	if *n <= 0 {
		return ""
	}
	return strings.Repeat(" ", *n)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
