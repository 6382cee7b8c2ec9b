package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"capshuffle/pkg/contract"
)

// Options 为项目发现器的可选配置。
type Options struct {
	// FileName: 判定项目目录所需的草稿文件名，默认 draft_content.json。
	FileName string `json:"file_name,omitempty"`
	// ExcludeDirNames: 跳过这些子目录名（基名，大小写不敏感）。
	// 例如 [".git","node_modules",".recycle_bin"]。
	ExcludeDirNames []string `json:"exclude_dir_names,omitempty"`
}

// FileSystem 在父目录的直接子目录中查找项目。
type FileSystem struct {
	name string
	// 以小写形式保存，比较时按小写基名匹配。
	excludeDir map[string]struct{}
}

// New 创建发现器；opts 可为 nil。
func New(opts *Options) (*FileSystem, error) {
	name := contract.DraftFileName
	ex := make(map[string]struct{})
	if opts != nil {
		if n := strings.TrimSpace(opts.FileName); n != "" {
			if n != filepath.Base(n) || n == "." || n == ".." {
				return nil, fmt.Errorf("%w: file_name %q", contract.ErrPathInvalid, opts.FileName)
			}
			name = n
		}
		for _, d := range opts.ExcludeDirNames {
			d = strings.Trim(strings.TrimSpace(d), `/\`)
			if d == "" {
				continue
			}
			ex[strings.ToLower(d)] = struct{}{}
		}
	}
	return &FileSystem{name: name, excludeDir: ex}, nil
}

var _ contract.Discoverer = (*FileSystem)(nil)

// Discover 返回 parent 下包含草稿文件的直接子目录，按名称字典序。
// 不递归；指向目录的符号链接按其目标判定（只跟随一层）；
// parent 不存在或不是目录时返回包装 ErrPathInvalid 的错误。
func (d *FileSystem) Discover(ctx context.Context, parent string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(parent) == "" {
		return nil, contract.ErrPathInvalid
	}
	st, err := os.Stat(parent)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", contract.ErrPathInvalid, parent)
		}
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", contract.ErrPathInvalid, parent)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, err
	}
	// 稳定顺序：字典序
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, skip := d.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		p := filepath.Join(parent, e.Name())
		if !d.isDir(e, p) {
			continue
		}
		if doc, err := os.Stat(filepath.Join(p, d.name)); err == nil && doc.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out, nil
}

// isDir 判定目录项是否为目录；符号链接按目标判定，失效链接视为非目录。
func (d *FileSystem) isDir(e fs.DirEntry, p string) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	t, err := os.Stat(p)
	return err == nil && t.IsDir()
}
