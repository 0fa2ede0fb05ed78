// Copyright (c) BatchFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 BatchFlow 管线的全局共享类型定义。

# 概述

types 是管线最底层的公共包，不依赖任何内部包，为 batcher、pool、
dispatch、autoscale、orchestrator 等上层模块提供统一的类型契约。
所有跨包共享的结构体、枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - WorkItem          — 单个提交的工作项（ID + 不透明载荷 + 提交时间）
  - Result            — 工作项的执行结果（输出 + 所在批次的执行耗时）
  - Batch             — 封板后的有序批次，Items[i] 与 Futures[i] 一一对应
  - Future            — 调用方持有的结果句柄（Pending → Dispatching → 终态）
  - WorkflowSpec      — 管线规格（副本上下限、批大小、刷新间隔、延迟目标）
  - Error / ErrorCode — 结构化错误体系，含 Retryable 标记与底层 Cause

# 主要能力

  - Future 生命周期：Wait / Done / Cancel / State，结果恰好交付一次
  - 调度前取消：Cancel 仅在 Pending 态生效，批内索引关系保持不变
  - 错误工具链：IsRetryable / GetErrorCode / IsCode 与逐码谓词
  - 常用错误构造：NewQueueFullError / NewOverloadedError 等
  - 规格校验：WorkflowSpec.Validate 与 DefaultWorkflowSpec
*/
package types
