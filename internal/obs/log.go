package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	logOnce sync.Once
	lineLog *log.Logger
)

// Logger returns the process-wide line logger. Request, audit and domain
// output all funnel through it, so tests capture everything with SetOutput.
func Logger() *log.Logger {
	logOnce.Do(func() {
		lineLog = log.New(os.Stdout, "", 0)
	})
	return lineLog
}

// LogRequest emits one JSON line for a completed HTTP request. Entries that
// cannot be serialized are replaced by an error line rather than dropped.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"request log entry not serializable"}`)
		return
	}
	Logger().Println(string(data))
}
