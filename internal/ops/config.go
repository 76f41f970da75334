// Package ops loads the runtime configuration file: a flat key=value
// dialect carrying the strategy id mapping, engine tuning, and the
// external endpoints.
package ops

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"
)

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	// Strategies maps numeric ids from the file to strategy names.
	Strategies map[int]string

	SocketEndpoint string
	InitialBalance float64
	ArchiveDSN     string

	MarketDataCapacity int
	OrderCapacity      int
	BatchSize          int
	StrategyCPU        int
	ExecutionCPU       int

	// settings keeps every non-numeric key for strategy parameters.
	settings map[string]string
}

func defaults() Loaded {
	return Loaded{
		Strategies:     make(map[int]string),
		InitialBalance: 1_000_000,
		StrategyCPU:    -1,
		ExecutionCPU:   -1,
		settings:       make(map[string]string),
	}
}

// Default returns the configuration used when no file is given.
func Default() Loaded {
	return defaults()
}

// Load reads and parses the config file. Blank lines and lines
// starting with '#' are skipped; '=' and ':' both separate key from
// value; surrounding whitespace and double quotes are trimmed. Keys
// that parse as integers map strategy ids to strategy names.
func Load(path string) (Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "open config")
	}
	defer f.Close()
	return parse(f)
}

func parse(f *os.File) (Loaded, error) {
	cfg := defaults()
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		key, value, ok := splitKeyValue(raw)
		if !ok {
			return Loaded{}, errors.Errorf("config line %d: missing separator: %s", line, raw)
		}
		if id, err := strconv.Atoi(key); err == nil {
			cfg.Strategies[id] = value
			continue
		}
		if err := cfg.apply(key, value); err != nil {
			return Loaded{}, errors.Wrap(err, "config").With("line", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	return cfg, nil
}

// splitKeyValue splits on the first '=' or ':', whichever comes
// first, and trims whitespace and double quotes from both sides.
func splitKeyValue(raw string) (key, value string, ok bool) {
	idx := strings.IndexAny(raw, "=:")
	if idx < 0 {
		return "", "", false
	}
	key = trim(raw[:idx])
	value = trim(raw[idx+1:])
	return key, value, key != ""
}

func trim(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func (c *Loaded) apply(key, value string) error {
	switch key {
	case "socket_endpoint":
		c.SocketEndpoint = value
	case "initial_balance":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrap(err, "parse initial_balance").With("value", value)
		}
		c.InitialBalance = v
	case "archive_dsn":
		c.ArchiveDSN = value
	case "market_data_capacity":
		return c.applyInt(&c.MarketDataCapacity, key, value)
	case "order_capacity":
		return c.applyInt(&c.OrderCapacity, key, value)
	case "batch_size":
		return c.applyInt(&c.BatchSize, key, value)
	case "strategy_cpu":
		return c.applyInt(&c.StrategyCPU, key, value)
	case "execution_cpu":
		return c.applyInt(&c.ExecutionCPU, key, value)
	default:
		c.settings[key] = value
	}
	return nil
}

func (c *Loaded) applyInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return errors.Wrap(err, "parse "+key).With("value", value)
	}
	*dst = v
	return nil
}

// StrategyName resolves a numeric strategy id.
func (c Loaded) StrategyName(id int) (string, bool) {
	name, ok := c.Strategies[id]
	return name, ok
}

// StrategyParams collects settings prefixed with "<name>." for
// passing to a strategy's Configure hook. The prefix match is case
// insensitive; returned keys have the prefix stripped.
func (c Loaded) StrategyParams(name string) map[string]string {
	prefix := strings.ToLower(name) + "."
	out := make(map[string]string)
	for key, value := range c.settings {
		if strings.HasPrefix(strings.ToLower(key), prefix) {
			out[key[len(prefix):]] = value
		}
	}
	return out
}

// Setting returns a raw non-numeric key.
func (c Loaded) Setting(key string) (string, bool) {
	v, ok := c.settings[key]
	return v, ok
}
