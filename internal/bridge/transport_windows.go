//go:build windows

package bridge

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	procWaitNamedPipeW = kernel32.NewProc("WaitNamedPipeW")
)

// dialEndpoint opens the backend named pipe. A busy pipe gets a
// WaitNamedPipe window and another attempt; quick callers wait less and
// give up sooner. Any other failure aborts immediately since waiting
// cannot fix a missing server.
func dialEndpoint(endpoint string, quick bool) (net.Conn, error) {
	name := pipePath(endpoint)
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("pipe name %q: %w", name, err)
	}

	attempts := 6
	waitMS := uint32(2000)
	if quick {
		attempts = 3
		waitMS = 500
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		handle, err := windows.CreateFile(
			name16,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			0,
			0,
		)
		if err == nil {
			return &pipeConn{handle: handle, name: name}, nil
		}
		if !errors.Is(err, windows.ERROR_PIPE_BUSY) {
			return nil, err
		}
		lastErr = err
		procWaitNamedPipeW.Call(uintptr(unsafe.Pointer(name16)), uintptr(waitMS))
	}
	return nil, lastErr
}

func pipePath(endpoint string) string {
	if strings.HasPrefix(endpoint, `\\.\pipe\`) {
		return endpoint
	}
	return `\\.\pipe\` + endpoint
}

// pipeConn adapts a pipe handle to net.Conn. Deadlines are no-ops; the
// dial attempt budget and the server closing after each response bound
// every call.
type pipeConn struct {
	handle windows.Handle
	name   string
}

func (c *pipeConn) Read(b []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.handle, b, &n, nil)
	if err != nil {
		// The server hangs up after writing its response; surface that
		// as a normal end of stream.
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) || errors.Is(err, windows.ERROR_PIPE_NOT_CONNECTED) {
			return int(n), io.EOF
		}
		return int(n), err
	}
	if n == 0 && len(b) > 0 {
		return 0, io.EOF
	}
	return int(n), nil
}

func (c *pipeConn) Write(b []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(c.handle, b, &n, nil)
	return int(n), err
}

func (c *pipeConn) Close() error {
	return windows.CloseHandle(c.handle)
}

func (c *pipeConn) LocalAddr() net.Addr  { return pipeAddr(c.name) }
func (c *pipeConn) RemoteAddr() net.Addr { return pipeAddr(c.name) }

func (c *pipeConn) SetDeadline(t time.Time) error      { return nil }
func (c *pipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *pipeConn) SetWriteDeadline(t time.Time) error { return nil }

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }
