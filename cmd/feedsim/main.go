// feedsim serves a synthetic random-walk tick stream over a websocket
// so winter's live mode can run without a market data vendor.
package main

import (
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"winter/internal/mdg"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":5555", "listen address")
	path := flag.String("path", "/feed", "websocket path")
	symbols := flag.String("symbols", "AAPL,MSFT,GOOGL,AMZN,TSLA", "comma separated symbols")
	basePrice := flag.Float64("base-price", 100, "starting price for the walk")
	baseSize := flag.Int64("base-size", 10, "minimum trade size")
	interval := flag.Duration("interval", 5*time.Millisecond, "delay between published ticks")
	seed := flag.Int64("seed", 0, "random walk seed (0=time based)")
	flag.Parse()

	list := strings.Split(*symbols, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}

	http.HandleFunc(*path, func(w http.ResponseWriter, r *http.Request) {
		serve(w, r, list, *basePrice, *baseSize, *interval, *seed)
	})

	logs.Infof("feedsim listening on %s%s, symbols: %s", *addr, *path, *symbols)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logs.Errorf("feedsim exited, err: %+v", err)
		os.Exit(1)
	}
}

// serve streams ticks to one client until the connection drops. Every
// client gets its own walk.
func serve(w http.ResponseWriter, r *http.Request, symbols []string, basePrice float64, baseSize int64, interval time.Duration, seed int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Warnf("upgrade failed, err: %+v", err)
		return
	}
	defer conn.Close()
	logs.Infof("feed client connected: %s", conn.RemoteAddr())

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen, err := mdg.NewGenerator(symbols, basePrice, baseSize, seed)
	if err != nil {
		logs.Errorf("generator setup failed, err: %+v", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for now := range ticker.C {
		if err := conn.WriteJSON(mdg.ToFrame(gen.Next(now))); err != nil {
			logs.Infof("feed client gone: %s", conn.RemoteAddr())
			return
		}
	}
}
