// Package loader читает определения flow из YAML/JSON файлов.
//
// Относительные имена разрешаются внутри каталога flows:
//
//	l := loader.New("./flows")
//	spec, err := l.Load("daily_report")      // ./flows/daily_report.yaml
//	spec, err := l.Load("/abs/path/x.json")  // абсолютный путь как есть
//
// JSON — подмножество YAML, поэтому оба формата разбираются одним
// декодером. Корень документа должен быть mapping.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/avantix/internal/domain"
)

// DefaultDir — каталог flows по умолчанию.
const DefaultDir = "./flows"

// Ошибки загрузки.
var (
	// ErrFlowNotFound — файл flow не найден.
	ErrFlowNotFound = errors.New("flow file not found")

	// ErrInvalidFlow — файл не является корректным определением flow.
	ErrInvalidFlow = errors.New("invalid flow definition")
)

// extensions — поддерживаемые расширения в порядке поиска.
var extensions = []string{".yaml", ".yml", ".json"}

// ParseError — ошибка разбора файла flow с позицией.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Unwrap позволяет проверять errors.Is(err, ErrInvalidFlow).
func (e *ParseError) Unwrap() error {
	return ErrInvalidFlow
}

// Loader загружает flow из каталога.
type Loader struct {
	dir string
}

// New создаёт Loader для каталога dir. Пустой dir — DefaultDir.
func New(dir string) *Loader {
	if dir == "" {
		dir = DefaultDir
	}
	return &Loader{dir: dir}
}

// Dir возвращает каталог flows.
func (l *Loader) Dir() string {
	return l.dir
}

// Resolve возвращает путь к файлу flow.
//
// Абсолютный путь используется как есть. Относительный ищется внутри
// каталога flows; если у имени нет расширения, пробуются .yaml, .yml, .json.
func (l *Loader) Resolve(nameOrPath string) (string, error) {
	if nameOrPath == "" {
		return "", fmt.Errorf("%w: empty name", ErrFlowNotFound)
	}

	p := nameOrPath
	if !filepath.IsAbs(p) {
		p = filepath.Join(l.dir, p)
	}

	if fileExists(p) {
		return p, nil
	}

	if filepath.Ext(p) == "" {
		for _, ext := range extensions {
			if fileExists(p + ext) {
				return p + ext, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrFlowNotFound, p)
}

// Load находит и разбирает flow.
func (l *Loader) Load(nameOrPath string) (*domain.FlowSpec, error) {
	path, err := l.Resolve(nameOrPath)
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile читает и разбирает файл flow.
func LoadFile(path string) (*domain.FlowSpec, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is a user-provided flow file
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, path)
		}
		return nil, fmt.Errorf("read flow: %w", err)
	}
	return Parse(data, path)
}

// Parse разбирает содержимое файла flow. source используется в ошибках.
func Parse(data []byte, source string) (*domain.FlowSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: source, Message: err.Error()}
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &ParseError{Path: source, Line: 1, Message: "empty flow file"}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    source,
			Line:    root.Line,
			Message: "flow definition root must be a mapping",
		}
	}

	var spec domain.FlowSpec
	if err := root.Decode(&spec); err != nil {
		return nil, &ParseError{Path: source, Line: root.Line, Message: err.Error()}
	}

	for i := range spec.Steps {
		if spec.Steps[i].Params == nil {
			spec.Steps[i].Params = map[string]any{}
		}
	}

	return &spec, nil
}

// FlowInfo — краткая информация о файле flow.
type FlowInfo struct {
	// File — имя файла относительно каталога flows.
	File string `json:"file"`

	// Name — имя flow из файла.
	Name string `json:"name,omitempty"`

	// Description — описание flow.
	Description string `json:"description,omitempty"`

	// OnError — политика flow как записана в файле.
	OnError string `json:"on_error,omitempty"`

	// Steps — количество шагов.
	Steps int `json:"steps"`

	// Error — ошибка разбора, если файл некорректен.
	Error string `json:"error,omitempty"`
}

// List возвращает файлы flow каталога, отсортированные по имени.
// Некорректные файлы попадают в список с заполненным Error.
func (l *Loader) List() ([]FlowInfo, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []FlowInfo{}, nil
		}
		return nil, fmt.Errorf("read flows dir: %w", err)
	}

	var infos []FlowInfo
	for _, e := range entries {
		if e.IsDir() || !isFlowFile(e.Name()) {
			continue
		}

		info := FlowInfo{File: e.Name()}
		spec, err := LoadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Name = spec.Name
			info.Description = spec.Description
			info.OnError = string(spec.OnError)
			info.Steps = len(spec.Steps)
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].File < infos[j].File })
	if infos == nil {
		infos = []FlowInfo{}
	}
	return infos, nil
}

func isFlowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
