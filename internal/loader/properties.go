package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kforge/internal/meta"
)

// PropertyPattern matches the property files FindPropertyFiles returns.
const PropertyPattern = "**/*.{cue,yaml,yml,properties}"

// LoadProperties reads property files in order and merges them with
// defines; later files override earlier ones and defines override every
// file.
func LoadProperties(paths []string, defines map[string]string) (meta.Properties, error) {
	sources := make([]map[string]string, 0, len(paths)+1)
	for _, path := range paths {
		m, err := ReadPropertyFile(path)
		if err != nil {
			return meta.Properties{}, err
		}
		sources = append(sources, m)
	}
	sources = append(sources, defines)
	return meta.NewProperties(sources...), nil
}

// FindPropertyFiles returns every property file under dir in lexical
// order.
func FindPropertyFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: dir, Message: err.Error()}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: dir, Message: "not a directory"}
	}
	matches, err := doublestar.Glob(os.DirFS(dir), PropertyPattern)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Path: dir, Message: err.Error()}
	}
	sort.Strings(matches)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	return out, nil
}

// ReadPropertyFile reads one file and flattens it to dotted keys. The
// format is chosen by extension.
func ReadPropertyFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := ErrCodeLoadFailed
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return nil, &LoadError{Code: code, Path: path, Message: err.Error()}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return parseCUEProperties(path, data)
	case ".yaml", ".yml":
		return parseYAMLProperties(path, data)
	case ".properties":
		return parseJavaProperties(path, data)
	}
	return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: "unknown property file extension"}
}

func parseCUEProperties(path string, data []byte) (map[string]string, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(path, ErrCodeLoadFailed, err)
	}
	if err := v.Validate(); err != nil {
		return nil, cueLoadError(path, ErrCodeLoadFailed, err)
	}
	out := make(map[string]string)
	if err := flattenCUE(path, "", v, out); err != nil {
		return nil, err
	}
	return out, nil
}

func cueLoadError(path, code string, err error) *LoadError {
	le := &LoadError{Code: code, Path: path, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Pos = errs[0].Position()
		le.Message = errs[0].Error()
	}
	// Conflicts carry their locations as input positions only.
	if !le.Pos.IsValid() {
		if ps := cueerrors.Positions(err); len(ps) > 0 {
			le.Pos = ps[0]
		}
	}
	return le
}

func flattenCUE(path, prefix string, v cue.Value, out map[string]string) error {
	switch v.IncompleteKind() {
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return cueLoadError(path, ErrCodeBuildFailed, err)
		}
		for iter.Next() {
			if err := flattenCUE(path, join(prefix, iter.Selector().Unquoted()), iter.Value(), out); err != nil {
				return err
			}
		}
		return nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return cueLoadError(path, ErrCodeBuildFailed, err)
		}
		var parts []string
		for iter.Next() {
			s, err := cueScalar(path, prefix, iter.Value())
			if err != nil {
				return err
			}
			parts = append(parts, s)
		}
		out[prefix] = strings.Join(parts, ",")
		return nil
	}
	s, err := cueScalar(path, prefix, v)
	if err != nil {
		return err
	}
	out[prefix] = s
	return nil
}

func cueScalar(path, key string, v cue.Value) (string, error) {
	if !v.IsConcrete() {
		return "", &LoadError{Code: ErrCodeBadValue, Path: path, Pos: v.Pos(), Message: fmt.Sprintf("%s: value is not concrete", key)}
	}
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return "", cueLoadError(path, ErrCodeBadValue, err)
		}
		return strconv.FormatInt(i, 10), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return "", cueLoadError(path, ErrCodeBadValue, err)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return "", cueLoadError(path, ErrCodeBadValue, err)
		}
		return strconv.FormatBool(b), nil
	}
	return "", &LoadError{Code: ErrCodeBadValue, Path: path, Pos: v.Pos(), Message: fmt.Sprintf("%s: unsupported %s value", key, v.Kind())}
}

func parseYAMLProperties(path string, data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	}
	out := make(map[string]string)
	if err := flattenYAML(path, "", doc, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenYAML(path, prefix string, v any, out map[string]string) error {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			if err := flattenYAML(path, join(prefix, k), child, out); err != nil {
				return err
			}
		}
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			s, ok := yamlScalar(el)
			if !ok {
				return &LoadError{Code: ErrCodeBadValue, Path: path, Message: fmt.Sprintf("%s[%d]: lists may only hold scalars", prefix, i)}
			}
			parts[i] = s
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
		out[prefix] = ""
	default:
		s, ok := yamlScalar(x)
		if !ok {
			return &LoadError{Code: ErrCodeBadValue, Path: path, Message: fmt.Sprintf("%s: unsupported %T value", prefix, x)}
		}
		out[prefix] = s
	}
	return nil
}

func yamlScalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func parseJavaProperties(path string, data []byte) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "!") {
			continue
		}
		k, v, err := meta.ParseDefine(text)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: fmt.Sprintf("line %d: %v", line, err)}
		}
		out[k] = v
	}
	if err := sc.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	}
	return out, nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
