// Package config 提供 BatchFlow 的配置管理功能。
//
// 支持从 YAML 文件和环境变量加载配置，优先级为
// 默认值 → YAML 文件 → 环境变量。管线规格在构建后不可变，
// 因此本包不提供热重载。
package config
