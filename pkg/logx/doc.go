// Package logx is schedbot's structured logging layer.
//
// Logger wraps zerolog and keeps:
//   - console output readable (short timestamp and caller),
//   - file output as JSON lines,
//   - an optional Telegram sink for warnings, rate limited.
package logx
