package app

import (
	"time"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// Observer 把“阶段/耗时”从会话流程中解耦出来。
//
// 约束：
// - app 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 回调在调用方 goroutine 中同步执行，应尽快返回。
type Observer interface {
	// OnStart 在一次操作开始时调用：op 为 transcript / ask / frame。
	OnStart(op string, id domain.VideoID)
	// OnPhaseDone 在阶段结束时调用（page / transcript / answer / history / frame）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(string, domain.VideoID) {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
