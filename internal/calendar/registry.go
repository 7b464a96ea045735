package calendar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tradecrew/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const fileSchema = `{
  "type": "object",
  "required": ["markets"],
  "properties": {
    "markets": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "holidays": {
            "type": "array",
            "items": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"}
          },
          "indices": {
            "type": "object",
            "additionalProperties": {
              "type": "array",
              "items": {"type": "string", "minLength": 1}
            }
          }
        }
      }
    }
  }
}`

// MarketFile 是单个市场在日历文件中的条目。
type MarketFile struct {
	Holidays []string            `yaml:"holidays" json:"holidays,omitempty"`
	Indices  map[string][]string `yaml:"indices" json:"indices,omitempty"`
}

// FileConfig 映射日历文件顶层结构。
type FileConfig struct {
	Markets map[string]MarketFile `yaml:"markets" json:"markets"`
}

// MarketData 是解析后的市场数据。
type MarketData struct {
	Holidays []time.Time
	Indices  map[string][]string
}

// Snapshot 是注册表某一版本的只读副本。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Markets  map[Market]MarketData
}

// ChangeListener 在文件重载后触发。
type ChangeListener func(Snapshot)

// Registry 管理节假日与指数成分文件，文件变更时自动重载。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取日历文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("calendar registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read calendar file failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("[calendar] 重载失败: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前版本的副本。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Market 返回某市场的数据。
func (r *Registry) Market(m Market) (MarketData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.snapshot.Markets[m]
	if !ok {
		return MarketData{}, false
	}
	return cloneMarket(data), true
}

// Subscribe 注册变更回调。
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readCalendarFile(r.path)
	if err != nil {
		return err
	}
	markets, err := buildMarkets(cfg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Markets:  markets,
	}
	r.mu.Unlock()
	logger.Infof("[calendar] 已加载 %d 个市场的日历数据 (%s)", len(markets), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("calendar listener")
			cb(snap)
		}(fn)
	}
}

func buildMarkets(cfg FileConfig) (map[Market]MarketData, error) {
	out := make(map[Market]MarketData, len(cfg.Markets))
	for name, entry := range cfg.Markets {
		market, err := ParseMarket(name)
		if err != nil {
			return nil, err
		}
		data := MarketData{Indices: make(map[string][]string, len(entry.Indices))}
		for _, raw := range entry.Holidays {
			day, err := ParseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("market %s holiday %q: %w", name, raw, err)
			}
			data.Holidays = append(data.Holidays, day)
		}
		sort.Slice(data.Holidays, func(i, j int) bool { return data.Holidays[i].Before(data.Holidays[j]) })
		for index, symbols := range entry.Indices {
			key := strings.ToLower(strings.TrimSpace(index))
			for _, s := range symbols {
				data.Indices[key] = append(data.Indices[key], strings.TrimSpace(s))
			}
		}
		out[market] = data
	}
	return out, nil
}

func readCalendarFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read calendar file failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("decode calendar file failed: %w", err)
	}
	if err := validateFile(cfg); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func validateFile(cfg FileConfig) error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("calendar.json", strings.NewReader(fileSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("calendar.json")
	})
	if schemaErr != nil {
		return fmt.Errorf("compile calendar schema: %w", schemaErr)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := schemaCompiled.Validate(doc); err != nil {
		return fmt.Errorf("calendar file invalid: %w", err)
	}
	return nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Markets:  make(map[Market]MarketData, len(src.Markets)),
	}
	for m, data := range src.Markets {
		dst.Markets[m] = cloneMarket(data)
	}
	return dst
}

func cloneMarket(src MarketData) MarketData {
	dst := MarketData{
		Holidays: append([]time.Time(nil), src.Holidays...),
		Indices:  make(map[string][]string, len(src.Indices)),
	}
	for k, v := range src.Indices {
		dst.Indices[k] = append([]string(nil), v...)
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
