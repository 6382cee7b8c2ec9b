package draft

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"capshuffle/pkg/contract"
)

// DefaultIndent 与原工具写回格式一致（两个空格）。
const DefaultIndent = "  "

// Decode 从 r 解析单个 JSON 值为保序树。
// 语法错误、尾随数据、空输入均返回包装 contract.ErrFormat 的错误。
// 对象内重复键：后值覆盖前值，位置保持首次出现处。
func Decode(r io.Reader) (*Node, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	root, err := decodeValue(dec)
	if err != nil {
		return nil, formatErr(err)
	}
	// 仅允许单个顶层值
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after top-level value")
		}
		return nil, formatErr(err)
	}
	return root, nil
}

func formatErr(err error) error {
	if errors.Is(err, contract.ErrFormat) {
		return err
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %v", contract.ErrFormat, err)
}

func decodeValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", kt)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				n.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // '}'
				return nil, err
			}
			return n, nil
		case '[':
			n := NewArray()
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, val)
			}
			if _, err := dec.Token(); err != nil { // ']'
				return nil, err
			}
			return n, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", v)
		}
	case string:
		return NewString(v), nil
	case json.Number:
		return NewNumber(v), nil
	case bool:
		return NewBool(v), nil
	case nil:
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unexpected token %T", tok)
	}
}

// Encode 将树写出到 w。indent 为空时输出紧凑格式，否则按 indent 逐级缩进。
// 不做 HTML 转义，非 ASCII 字符按 UTF-8 原样输出；末尾不追加换行。
func Encode(w io.Writer, n *Node, indent string) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw, indent: indent}
	e.str = json.NewEncoder(&e.scratch)
	e.str.SetEscapeHTML(false)
	if err := e.value(n, 0); err != nil {
		return err
	}
	return bw.Flush()
}

// Marshal 为 Encode 的便捷形式。
func Marshal(n *Node, indent string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, n, indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	w       *bufio.Writer
	indent  string
	scratch bytes.Buffer
	str     *json.Encoder
}

func (e *encoder) value(n *Node, depth int) error {
	switch n.Kind() {
	case Null:
		_, err := e.w.WriteString("null")
		return err
	case Bool:
		if n.boolean {
			_, err := e.w.WriteString("true")
			return err
		}
		_, err := e.w.WriteString("false")
		return err
	case Number:
		_, err := e.w.WriteString(n.text)
		return err
	case String:
		return e.quote(n.text)
	case Array:
		if len(n.items) == 0 {
			_, err := e.w.WriteString("[]")
			return err
		}
		_ = e.w.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				_ = e.w.WriteByte(',')
			}
			e.newline(depth + 1)
			if err := e.value(it, depth+1); err != nil {
				return err
			}
		}
		e.newline(depth)
		return e.w.WriteByte(']')
	case Object:
		if len(n.members) == 0 {
			_, err := e.w.WriteString("{}")
			return err
		}
		_ = e.w.WriteByte('{')
		for i, m := range n.members {
			if i > 0 {
				_ = e.w.WriteByte(',')
			}
			e.newline(depth + 1)
			if err := e.quote(m.Key); err != nil {
				return err
			}
			_ = e.w.WriteByte(':')
			if e.indent != "" {
				_ = e.w.WriteByte(' ')
			}
			if err := e.value(m.Value, depth+1); err != nil {
				return err
			}
		}
		e.newline(depth)
		return e.w.WriteByte('}')
	default:
		return fmt.Errorf("draft: unknown node kind %d", n.Kind())
	}
}

func (e *encoder) newline(depth int) {
	if e.indent == "" {
		return
	}
	_ = e.w.WriteByte('\n')
	_, _ = e.w.WriteString(strings.Repeat(e.indent, depth))
}

// quote 借用 encoding/json 的字符串转义规则。
func (e *encoder) quote(s string) error {
	e.scratch.Reset()
	if err := e.str.Encode(s); err != nil {
		return err
	}
	b := bytes.TrimSuffix(e.scratch.Bytes(), []byte{'\n'})
	_, err := e.w.Write(b)
	return err
}
