// Command bench runs a synthetic mixed find/insert/remove workload against
// a Manager, serves Prometheus metrics, and optionally exposes pprof.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ljluestc/arangodb/cache"
	"github.com/ljluestc/arangodb/executor"
	"github.com/ljluestc/arangodb/hash"
	pmet "github.com/ljluestc/arangodb/metrics/prom"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		globalLimit = flag.Uint64("limit", 64<<20, "manager global memory budget (bytes)")
		cacheType   = flag.String("type", "plain", "cache type: plain | transactional")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 95, "find percentage [0..100]")
		writePct = flag.Int("writes", 4, "insert percentage [0..100]; remainder is remove")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = keys/4)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	pool := executor.New(int64(2 * runtime.GOMAXPROCS(0)))
	manager := cache.NewManager(cache.Config{
		GlobalLimit: *globalLimit,
		Executor:    pool,
	})

	metrics := pmet.New(nil, "cachemgr", "bench", manager, manager.Caches)
	http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.Refresh()
		promhttp.Handler().ServeHTTP(w, r)
	})
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	kind := cache.Plain
	if *cacheType == "transactional" {
		kind = cache.Transactional
	}
	c, err := manager.CreateCache(cache.CreateOptions{Type: kind, Hasher: hash.NewBinary()})
	if err != nil {
		log.Fatalf("create cache: %v", err)
	}

	pl := *preload
	if pl == 0 {
		pl = *keys / 4
	}
	for i := 0; i < pl; i++ {
		k := []byte("k:" + strconv.Itoa(i))
		_ = c.Insert(k, []byte("v:"+strconv.Itoa(i)))
	}

	rebalanceCtx, stopRebalance := context.WithCancel(context.Background())
	defer stopRebalance()
	go func() {
		t := time.NewTicker(200 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-rebalanceCtx.Done():
				return
			case <-t.C:
				manager.Rebalance()
			}
		}
	}()

	readPctVal := *readPct
	writePctVal := *writePct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	var finds, inserts, removes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, *zipfS, *zipfV, keysMax)
			keyOf := func() []byte { return []byte("k:" + strconv.FormatUint(localZipf.Uint64(), 10)) }

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				atomic.AddUint64(&total, 1)
				roll := localR.Intn(100)
				switch {
				case roll < readPctVal:
					atomic.AddUint64(&finds, 1)
					f := c.Find(keyOf())
					if f.Found() {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
					f.Release()
				case roll < readPctVal+writePctVal:
					atomic.AddUint64(&inserts, 1)
					k := keyOf()
					_ = c.Insert(k, []byte("v:"+strconv.Itoa(localR.Int())))
				default:
					atomic.AddUint64(&removes, 1)
					_ = c.Remove(keyOf())
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	lifetime, windowed := c.HitRate()
	st := manager.Stats()

	fmt.Printf("type=%s limit=%d workers=%d keys=%d dur=%v seed=%d\n",
		*cacheType, *globalLimit, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  finds=%d  inserts=%d  removes=%d\n",
		total, float64(total)/elapsed.Seconds(), finds, inserts, removes)
	fmt.Printf("hits=%d  misses=%d  hitRate(lifetime)=%.2f%%  hitRate(windowed)=%.2f%%\n",
		hits, misses, lifetime*100, windowed*100)
	fmt.Printf("globalAllocation=%d  activeTables=%d  spareTables=%d\n",
		st.GlobalAllocation, st.ActiveTables, st.SpareTables)
}
