// Copyright 2026 BatchFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 BatchFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试与基准测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。所有测试应优先使用此包
中的工具函数和 Mock 实现。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 期货断言: AssertResolved / AssertFailedWith / CollectResults，
    按超时等待终态并校验错误码
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual，
    支持超时轮询等待条件满足
  - 数据工具: MustJSON / MustParseJSON / Payloads，
    简化测试数据构造

# 子包

  - testutil/mocks: Mock 实现，包括 MockKernel（可编排脚本的计算内核）、
    MockProvisioner（可注入失败的副本供给器）、MockSink（采样收集器），
    均支持 Builder 模式与错误注入
  - testutil/fixtures: 测试数据工厂，提供预置 WorkflowSpec 样例

# 使用示例

	ctx := testutil.TestContext(t)
	kernel := mocks.NewMockKernel().WithEcho()
	outputs, err := kernel.Process(ctx, testutil.Payloads(3))
	require.NoError(t, err)
*/
package testutil
