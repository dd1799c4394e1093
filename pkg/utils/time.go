package utils // import "github.com/creaproof/provenance-registrar/pkg/utils"

import (
	"time"
)

// SecsToTime converts an int64 of seconds from epoch to Time struct
func SecsToTime(ts int64) time.Time {
	return time.Unix(ts, 0)
}

// CurrentEpochSecsInInt64 returns the current time in epoch seconds
func CurrentEpochSecsInInt64() int64 {
	return time.Now().Unix()
}
