package main

import (
    "context"
    "fmt"
    "math"
    "net/http/httptest"
    "os"
    "sort"
    "strconv"
    "time"

    "github.com/d60-Lab/sidequest-sync/config"
    "github.com/d60-Lab/sidequest-sync/internal/api"
    "github.com/d60-Lab/sidequest-sync/internal/model"
    "github.com/d60-Lab/sidequest-sync/internal/service"
    "github.com/d60-Lab/sidequest-sync/internal/stubserver"
    "github.com/d60-Lab/sidequest-sync/pkg/logger"
    "github.com/d60-Lab/sidequest-sync/pkg/tracing"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

func main() {
    cfg := must(config.Load())
    must(0, logger.Init(cfg.LogLevel, cfg.SentryDSN))
    defer logger.Sync()
    shutdown := must(tracing.Init(context.Background(), "togglebench", cfg.OTLPEndpoint))
    defer func() { _ = shutdown(context.Background()) }()

    db := must(stubserver.Open(os.Getenv("DATABASE_URL")))
    srv := stubserver.New(db, "bench-secret")
    ts := httptest.NewServer(srv.Router())
    defer ts.Close()

    ctx := context.Background()

    N := 10000
    if s := os.Getenv("N"); s != "" {
        if n, err := strconv.Atoi(s); err == nil && n > 0 { N = n }
    }
    CONC := 1
    if s := os.Getenv("CONC"); s != "" {
        if c, err := strconv.Atoi(s); err == nil && c > 0 { CONC = c }
    }
    QUESTS := 100
    if s := os.Getenv("QUESTS"); s != "" {
        if q, err := strconv.Atoi(s); err == nil && q > 0 { QUESTS = q }
    }

    session := service.NewSession()
    client := api.New(&config.Config{APIBaseURL: ts.URL, HTTPTimeout: 30 * time.Second}, session)
    must(0, session.Signup(ctx, client, "bench", "bench"))

    quests := make([]string, QUESTS)
    for i := 0; i < QUESTS; i++ {
        q := must(client.CreateQuest(ctx, fmt.Sprintf("bench quest %d", i), ""))
        quests[i] = q.ID
    }

    ledger := service.NewVoteLedger(func(ctx context.Context, entityID string, delta int) (int, error) {
        q, err := client.VoteQuest(ctx, entityID, delta)
        if err != nil { return 0, err }
        return q.Votes, nil
    })
    reconciler := service.NewReconciler(ledger, func(ctx context.Context, entityID string) (int, model.VoteDirection, error) {
        qs, err := client.ListQuestsWithVotes(ctx)
        if err != nil { return 0, 0, err }
        for _, q := range qs {
            if q.ID == entityID { return q.Votes, q.MyVote, nil }
        }
        return 0, model.NoVote, nil
    }, 100000)
    stop := reconciler.Start(4)

    recMetrics := reconciler.Metrics()
    recRecs := make([]time.Duration, 0, N)
    doneRec := make(chan struct{})
    go func() {
        timeout := time.NewTimer(5 * time.Minute)
        defer timeout.Stop()
        for {
            select {
            case d := <-recMetrics:
                recRecs = append(recRecs, d)
            case <-doneRec:
                return
            case <-timeout.C:
                return
            }
        }
    }()

    maxQ := 0
    quitSample := make(chan struct{})
    go func() {
        ticker := time.NewTicker(50 * time.Millisecond)
        defer ticker.Stop()
        for {
            select {
            case <-ticker.C:
                if q := reconciler.QueueLen(); q > maxQ { maxQ = q }
            case <-quitSample:
                return
            }
        }
    }()

    toggleRecs := make([]time.Duration, 0, N)
    toggleCh := make(chan time.Duration, N)

    t0 := time.Now()
    workers := CONC
    if workers > N { workers = N }
    feed := make(chan int, N)
    for i := 0; i < N; i++ { feed <- i }
    close(feed)
    errCh := make(chan error, workers)
    for w := 0; w < workers; w++ {
        go func() {
            for i := range feed {
                dir := model.Upvote
                if i%3 == 2 { dir = model.Downvote }
                st := time.Now()
                _, _ = ledger.Toggle(ctx, quests[i%QUESTS], dir)
                toggleCh <- time.Since(st)
            }
            errCh <- nil
        }()
    }
    for w := 0; w < workers; w++ { <-errCh }
    close(toggleCh)
    for d := range toggleCh { toggleRecs = append(toggleRecs, d) }
    toggleDur := time.Since(t0)
    close(quitSample)

    // 把剩余存疑实体全部回源对齐
    drainStart := time.Now()
    reconciler.Sweep()
    _ = stop(context.Background())
    drainDur := time.Since(drainStart)
    close(doneRec)

    q0 := time.Now()
    _ = must(client.ListQuestsWithVotes(ctx))
    listDur := time.Since(q0)

    pct := func(vs []time.Duration, p float64) time.Duration {
        if len(vs) == 0 { return 0 }
        xs := append([]time.Duration(nil), vs...)
        sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
        k := int(math.Ceil(p*float64(len(xs)))) - 1
        if k < 0 { k = 0 }
        if k >= len(xs) { k = len(xs)-1 }
        return xs[k]
    }

    staleLeft := len(ledger.StaleIDs())
    fmt.Printf("N=%d, CONC=%d, QUESTS=%d\n", N, CONC, QUESTS)
    fmt.Printf("Toggle latency total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
        toggleDur, toggleDur/time.Duration(N), pct(toggleRecs, 0.50), pct(toggleRecs, 0.95), pct(toggleRecs, 0.99))
    fmt.Printf("List with_votes latency: %v\n", listDur)
    fmt.Printf("Stale after sweep: %d, drain=%v\n", staleLeft, drainDur)
    if len(recRecs) > 0 {
        fmt.Printf("Reconcile landing: samples=%d, p50=%v, p95=%v, p99=%v, maxQueue=%d\n",
            len(recRecs), pct(recRecs, 0.50), pct(recRecs, 0.95), pct(recRecs, 0.99), maxQ)
    }
}
