package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/sidequest-sync/internal/model"
	"github.com/d60-Lab/sidequest-sync/pkg/logger"
)

// FetchFunc 回源单个实体的权威投票状态（聚合值 + my_vote）
type FetchFunc func(ctx context.Context, entityID string) (total int, my model.VoteDirection, err error)

type refreshJob struct {
	entityID string
	enqAt    time.Time
}

// Reconciler 后台把账本里存疑（回滚过 / 响应乱序）的实体
// 重新拉权威状态对齐。本地不盲目反算聚合值，以回源为准。
type Reconciler struct {
	ledger    *VoteLedger
	fetch     FetchFunc
	ch        chan refreshJob
	metricsCh chan time.Duration
}

func NewReconciler(ledger *VoteLedger, fetch FetchFunc, queueSize int) *Reconciler {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Reconciler{
		ledger:    ledger,
		fetch:     fetch,
		ch:        make(chan refreshJob, queueSize),
		metricsCh: make(chan time.Duration, 65536),
	}
}

func (r *Reconciler) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case job := <-r.ch:
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					total, my, err := r.fetch(ctx, job.entityID)
					cancel()
					if err != nil {
						logger.Warn("reconcile fetch failed",
							zap.String("entity", job.entityID), zap.Error(err))
						continue
					}
					r.ledger.Sync(job.entityID, total, my)
					if !job.enqAt.IsZero() {
						select {
						case r.metricsCh <- time.Since(job.enqAt):
						default:
						}
					}
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		// 等待队列自然排空一小段时间
		timeout := time.After(2 * time.Second)
		for {
			select {
			case <-timeout:
				return nil
			default:
				if len(r.ch) == 0 {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
}

// Enqueue 把一个实体排入回源队列；队列满则丢弃（下轮 Sweep 会再捞）
func (r *Reconciler) Enqueue(entityID string) {
	select {
	case r.ch <- refreshJob{entityID: entityID, enqAt: time.Now()}:
	default:
		logger.Warn("reconciler queue full, drop refresh", zap.String("entity", entityID))
	}
}

// Sweep 把账本里当前所有存疑实体整批入队
func (r *Reconciler) Sweep() {
	for _, id := range r.ledger.StaleIDs() {
		r.Enqueue(id)
	}
}

// Metrics 返回回源耗时的只读通道（每处理一条发送一次 duration）。
func (r *Reconciler) Metrics() <-chan time.Duration { return r.metricsCh }

// QueueLen 返回当前队列长度（采样值）。
func (r *Reconciler) QueueLen() int { return len(r.ch) }
