// Package logx configures structured logging for the bot.
//
// logx.Logger is a small wrapper over zerolog that keeps:
//   - console output readable (short timestamp + file:line caller)
//   - file output as JSON lines
//   - an optional Telegram sink for warnings (min-level + rate limited)
//
// Never pass secrets (bot token, callback key) as fields.
package logx
