// Package tgui holds small Telegram UI helpers: inline keyboard builders and
// "scope:action:payload" callback data.
package tgui
