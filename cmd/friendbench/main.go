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
    "github.com/d60-Lab/sidequest-sync/internal/service"
    "github.com/d60-Lab/sidequest-sync/internal/stubserver"
    "github.com/d60-Lab/sidequest-sync/pkg/logger"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

// 场景：N 个用户向同一个「红人」发好友请求，红人逐条接受，
// 压的是请求队列和双向 list_friends 的读路径。
func main() {
    cfg := must(config.Load())
    must(0, logger.Init(cfg.LogLevel, cfg.SentryDSN))
    defer logger.Sync()

    db := must(stubserver.Open(os.Getenv("DATABASE_URL")))
    srv := stubserver.New(db, "bench-secret")
    ts := httptest.NewServer(srv.Router())
    defer ts.Close()

    ctx := context.Background()

    N := 2000
    if s := os.Getenv("N"); s != "" {
        if n, err := strconv.Atoi(s); err == nil && n > 0 { N = n }
    }
    CONC := 8
    if s := os.Getenv("CONC"); s != "" {
        if c, err := strconv.Atoi(s); err == nil && c > 0 { CONC = c }
    }

    newUser := func(name string) (*service.Session, *api.Client) {
        session := service.NewSession()
        client := api.New(&config.Config{APIBaseURL: ts.URL, HTTPTimeout: 30 * time.Second}, session)
        must(0, session.Signup(ctx, client, name, "p"))
        return session, client
    }

    _, celebClient := newUser("celeb")
    celebGraph := service.NewFriendGraph(celebClient)

    clients := make([]*api.Client, N)
    for i := 0; i < N; i++ {
        _, clients[i] = newUser(fmt.Sprintf("fan%06d", i))
    }

    sendRecs := make([]time.Duration, 0, N)
    sendCh := make(chan time.Duration, N)

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
                g := service.NewFriendGraph(clients[i])
                st := time.Now()
                _ = g.SendRequest(ctx, "celeb")
                sendCh <- time.Since(st)
            }
            errCh <- nil
        }()
    }
    for w := 0; w < workers; w++ { <-errCh }
    close(sendCh)
    for d := range sendCh { sendRecs = append(sendRecs, d) }
    sendDur := time.Since(t0)

    // 红人侧：拉队列 + 全部接受
    t1 := time.Now()
    must(0, celebGraph.RefreshIncoming(ctx))
    incoming := celebGraph.Incoming()
    refreshDur := time.Since(t1)

    acceptRecs := make([]time.Duration, 0, len(incoming))
    t2 := time.Now()
    for _, req := range incoming {
        st := time.Now()
        _ = celebGraph.Respond(ctx, req.ID, true)
        acceptRecs = append(acceptRecs, time.Since(st))
    }
    acceptDur := time.Since(t2)

    t3 := time.Now()
    must(0, celebGraph.RefreshFriends(ctx))
    listDur := time.Since(t3)

    pct := func(vs []time.Duration, p float64) time.Duration {
        if len(vs) == 0 { return 0 }
        xs := append([]time.Duration(nil), vs...)
        sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
        k := int(math.Ceil(p*float64(len(xs)))) - 1
        if k < 0 { k = 0 }
        if k >= len(xs) { k = len(xs)-1 }
        return xs[k]
    }

    fmt.Printf("N=%d, CONC=%d\n", N, CONC)
    fmt.Printf("Send request total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
        sendDur, sendDur/time.Duration(N), pct(sendRecs, 0.50), pct(sendRecs, 0.95), pct(sendRecs, 0.99))
    fmt.Printf("Refresh incoming(%d): %v\n", len(incoming), refreshDur)
    fmt.Printf("Accept all: total %v, per op: %v, p95: %v\n",
        acceptDur, acceptDur/time.Duration(len(incoming)+1), pct(acceptRecs, 0.95))
    fmt.Printf("Refresh friends(%d): %v\n", len(celebGraph.Friends()), listDur)
}
