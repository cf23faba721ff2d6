package config

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

type ConfigSource interface {
	GetValue(key string) interface{}
	Name() string
}

type ConfigOption struct {
	Name         string
	Description  string
	DefaultValue interface{}
	LoadedValue  interface{}
	Manager      *ConfigManager

	ConfigSource ConfigSource
}

func (opt *ConfigOption) LoadValue() {
	newVal := opt.DefaultValue
	opt.ConfigSource = nil

	// later sources take priority
	for i := len(opt.Manager.sources) - 1; i >= 0; i-- {
		source := opt.Manager.sources[i]

		v := source.GetValue(opt.Name)
		if v != nil {
			newVal = v
			opt.ConfigSource = source
			break
		}
	}

	// parse ahead of time
	if opt.DefaultValue != nil {
		switch opt.DefaultValue.(type) {
		case int:
			newVal = interface{}(intVal(newVal))
		case bool:
			newVal = interface{}(boolVal(newVal))
		case float64:
			newVal = interface{}(floatVal(newVal))
		}
	}

	opt.LoadedValue = newVal
}

func (opt *ConfigOption) GetString() string {
	return strVal(opt.LoadedValue)
}

func (opt *ConfigOption) GetInt() int {
	return intVal(opt.LoadedValue)
}

func (opt *ConfigOption) GetInt64() int64 {
	return int64Val(opt.LoadedValue)
}

func (opt *ConfigOption) GetFloat() float64 {
	return floatVal(opt.LoadedValue)
}

func (opt *ConfigOption) GetBool() bool {
	return boolVal(opt.LoadedValue)
}

// GetSeconds interprets the value as a number of seconds
func (opt *ConfigOption) GetSeconds() time.Duration {
	return time.Duration(opt.GetInt()) * time.Second
}

type ConfigManager struct {
	mu      sync.Mutex
	sources []ConfigSource
	Options map[string]*ConfigOption
}

func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		Options: make(map[string]*ConfigOption),
	}
}

func (c *ConfigManager) AddSource(source ConfigSource) {
	c.mu.Lock()
	c.sources = append(c.sources, source)
	c.mu.Unlock()
}

func (c *ConfigManager) RegisterOption(name, desc string, defaultValue interface{}) *ConfigOption {
	opt := &ConfigOption{
		Name:         name,
		Description:  desc,
		DefaultValue: defaultValue,
		Manager:      c,
	}

	c.mu.Lock()
	c.Options[name] = opt
	c.mu.Unlock()
	return opt
}

func (c *ConfigManager) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range c.Options {
		v.LoadValue()
	}
}

func strVal(i interface{}) string {
	switch t := i.(type) {
	case string:
		return t
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case Stringer:
		return t.String()
	}

	return ""
}

type Stringer interface {
	String() string
}

func intVal(i interface{}) int {
	return int(int64Val(i))
}

func int64Val(i interface{}) int64 {
	switch t := i.(type) {
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	}

	return 0
}

func floatVal(i interface{}) float64 {
	switch t := i.(type) {
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	}

	return 0
}

func boolVal(i interface{}) bool {
	switch t := i.(type) {
	case string:
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "true" || lower == "yes" || lower == "on" || lower == "enabled" || lower == "1" {
			return true
		}

		return false
	case int:
		return t > 0
	case bool:
		return t
	}

	return false
}

// Singleton is the process wide manager used by the package level helpers
var Singleton = NewConfigManager()

func AddSource(source ConfigSource) {
	Singleton.AddSource(source)
}

func RegisterOption(name, desc string, defaultValue interface{}) *ConfigOption {
	return Singleton.RegisterOption(name, desc, defaultValue)
}

func Load() {
	Singleton.Load()
}
