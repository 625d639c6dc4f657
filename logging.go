package smartfs

import (
	"io"
	"os"
)

// logWriter is the default destination for every subsystem logger. Tests
// and embedding hosts can redirect it with SetLogOutput before Attach.
var logWriter io.Writer = os.Stderr

// SetLogOutput redirects every package subsystem logger (block device,
// superblock, dedup, cache, pipeline, version manager, WAL) to w.
func SetLogOutput(w io.Writer) {
	logWriter = w
	for _, l := range []interface{ SetOutput(io.Writer) }{
		blockLog, superLog, dedupLog, cacheLog, pipeLog, versionLog, walLog,
	} {
		l.SetOutput(w)
	}
}
