//go:build rp2040 || rp2350

package logx

import "io"

// printWriter forwards to the runtime console until the platform installs a UART.
type printWriter struct{}

func (printWriter) Write(p []byte) (int, error) {
	print(string(p))
	return len(p), nil
}

func defaultOutput() io.Writer { return printWriter{} }
