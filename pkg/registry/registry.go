package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"capshuffle/pkg/contract"
	dfs "capshuffle/plugins/discover/filesystem"
	sfs "capshuffle/plugins/store/filesystem"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段；随后按 validate 标签校验。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	return nil
}

// NewStore 工厂签名：接收原样 JSON Options。
type NewStore func(raw json.RawMessage) (contract.ProjectStore, error)

// NewDiscoverer 工厂签名：接收原样 JSON Options。
type NewDiscoverer func(raw json.RawMessage) (contract.Discoverer, error)

// Store 工厂注册表（显式、零反射）。
var Store = map[string]NewStore{
	// fs: 本地文件系统（原子替换与可选备份）
	"fs": func(raw json.RawMessage) (contract.ProjectStore, error) {
		var opts sfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sfs.New(&opts)
	},
}

// Discoverer 工厂注册表。
var Discoverer = map[string]NewDiscoverer{
	// fs: 直接子目录扫描
	"fs": func(raw json.RawMessage) (contract.Discoverer, error) {
		var opts dfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dfs.New(&opts)
	},
}

// Names 返回注册表中的名称（排序），用于错误提示。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
