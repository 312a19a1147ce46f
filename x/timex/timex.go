package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ms converts a millisecond count from configuration to a Duration.
func Ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Secs converts a second count from configuration to a Duration.
func Secs(n int) time.Duration { return time.Duration(n) * time.Second }
