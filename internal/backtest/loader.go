// Package backtest replays historical CSV ticks through a strategy
// synchronously and aggregates performance metrics.
package backtest

import (
	"bufio"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"winter/internal/model"
)

// Load reads a historical tick CSV. The first line is a header and is
// discarded; each following row needs time, symbol, price, size in
// columns 0, 1, 3, 4 (market_center sits in column 2 and is ignored,
// as is anything after column 4). Rows that fail to parse are skipped.
// Ticks get synthetic monotonically increasing timestamps in file
// order, so replay order matches file order regardless of how many
// goroutines parsed the rows.
func Load(path string) ([]model.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open backtest csv").With("path", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "read backtest csv").With("path", path)
		}
		return []model.Tick{}, nil
	}

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read backtest csv").With("path", path)
	}
	if len(lines) == 0 {
		return []model.Tick{}, nil
	}
	logs.Infof("read %d rows from %s", len(lines), path)

	parsed := make([]model.Tick, len(lines))
	valid := make([]bool, len(lines))

	workers := min(runtime.NumCPU(), len(lines))
	chunk := (len(lines) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, len(lines))
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				tick, ok := parseRow(lines[i])
				if !ok {
					continue
				}
				tick.TimestampUs = int64(i)
				parsed[i] = tick
				valid[i] = true
			}
		}(start, end)
	}
	wg.Wait()

	ticks := make([]model.Tick, 0, len(lines))
	for i := range parsed {
		if valid[i] {
			ticks = append(ticks, parsed[i])
		}
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].TimestampUs < ticks[j].TimestampUs
	})

	logs.Infof("loaded %d ticks from %s, skipped %d rows", len(ticks), path, len(lines)-len(ticks))
	return ticks, nil
}

func parseRow(line string) (model.Tick, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return model.Tick{}, false
	}
	ts := strings.TrimSpace(fields[0])
	symbol := strings.TrimSpace(fields[1])
	priceStr := strings.TrimSpace(fields[3])
	sizeStr := strings.TrimSpace(fields[4])
	if ts == "" || symbol == "" || priceStr == "" || sizeStr == "" {
		return model.Tick{}, false
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price <= 0 {
		return model.Tick{}, false
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil || size < 0 {
		return model.Tick{}, false
	}
	return model.Tick{Symbol: symbol, Price: price, Volume: size}, true
}
