package lintserver

import (
	"io"

	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/jsonrpc"
)

// stdioReaderWriter adapts a (stdin, stdout) pair to the connection
// interface expected by the JSON-RPC layer.
type stdioReaderWriter struct {
	in  io.Reader
	out io.Writer
}

var _ jsonrpc.ReaderWriter = (*stdioReaderWriter)(nil)

func (rw *stdioReaderWriter) Read(p []byte) (int, error) {
	return rw.in.Read(p)
}

func (rw *stdioReaderWriter) Write(p []byte) (int, error) {
	return rw.out.Write(p)
}

func (rw *stdioReaderWriter) Close() error {
	var err error
	if closer, ok := rw.in.(io.Closer); ok {
		err = closer.Close()
	}
	if closer, ok := rw.out.(io.Closer); ok {
		if closeErr := closer.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
