// Copyright (c) BatchFlow Authors.
// Licensed under the MIT License.

/*
Package orchestrator 是 BatchFlow 管线的组合根与唯一外部入口。

# 概述

orchestrator 按照 window → pool → dispatch → batcher → autoscale 的顺序
装配全部子系统,对外只暴露 Submit:调用方提交单个载荷,立即拿到一个
Future 句柄,批组装、worker 调度、结果扇出与副本伸缩全部发生在后台。

# 数据流

	Submit → Batcher(组批) → Dispatcher(派发) → WorkerPool(执行)
	       → Future(结果交付) → MetricsWindow(延迟样本)
	       → AutoscalingController(评估) → WorkerPool.ScaleTo(伸缩)

# 主要能力

  - Submit / SubmitWait — 非阻塞提交与同步等待两种调用面
  - 同步背压:待处理缓冲满返回 QueueFull,派发积压满返回 Overloaded
  - Start 启动扩缩容回路,EvaluateNow 立即触发一次评估
  - Stats / Workers — 聚合各子系统的观测快照
  - Close 按 接收面 → 派发面 → 控制面 → 执行面 的顺序优雅停机,
    已接纳的工作项保证恰好一次终态

# 使用方式

	orc, err := orchestrator.New(spec, kernel, orchestrator.WithLogger(logger))
	orc.Start(ctx)
	defer orc.Close(ctx)

	future, err := orc.Submit(ctx, payload)
	result, err := future.Wait(ctx)
*/
package orchestrator
