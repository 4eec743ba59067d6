package service

import "time"

// Eventually 轮询参数，统一放宽避免慢 CI 抖动
const (
	testWait = 3 * time.Second
	testTick = 5 * time.Millisecond
)
