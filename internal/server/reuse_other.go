//go:build !unix

package server

import "syscall"

// reuseAddrControl is a no-op where SO_REUSEADDR would allow another
// process to steal the port (Windows). The runtime already releases the
// socket before Stop returns.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
