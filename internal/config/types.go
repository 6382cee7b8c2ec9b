package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Projects: 显式指定的项目目录；Scan: 需要扫描直接子目录的父目录。
	Projects    []string `json:"projects,omitempty" validate:"dive,required"`
	Scan        []string `json:"scan,omitempty" validate:"dive,required"`
	Concurrency int      `json:"concurrency" validate:"gte=1,lte=256"`
	// DryRun: 执行重排但不写回。
	DryRun  bool    `json:"dry_run"`
	Output  Output  `json:"output"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Output: 写回格式。
type Output struct {
	// Indent: 每级缩进空格数；0 为紧凑输出；nil 表示未设置（默认 2）。
	Indent *int `json:"indent,omitempty" validate:"omitnil,gte=0,lte=8"`
}

// Logging: 日志等级、格式与目录。
type Logging struct {
	Level  string `json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format,omitempty" validate:"omitempty,oneof=json console"`
	Dir    string `json:"dir,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Store      string `json:"store,omitempty"`
	Discoverer string `json:"discoverer,omitempty"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Store      json.RawMessage `json:"store,omitempty"`
	Discoverer json.RawMessage `json:"discoverer,omitempty"`
}
