package poollog

import "os"

// newStdoutSyncer returns os.Stdout as a zapcore.WriteSyncer; New always
// writes to it, whether or not a rotated file is also configured.
func newStdoutSyncer() *os.File {
	return os.Stdout
}
