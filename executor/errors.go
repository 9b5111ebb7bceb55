package executor

import (
	"strings"
)

// permanentFailures are L2 business errors that no resubmission can fix.
// Deposits failing with one of them are retired.
var permanentFailures = []string{
	"deposit already finalized",
	"not allowed to receive funds",
}

// IsPermanentFailure reports whether err is a business rejection of a
// finalize message.
func IsPermanentFailure(err error) bool {
	if err == nil {
		return false
	}
	return isPermanentMessage(err.Error())
}

func isPermanentMessage(msg string) bool {
	for _, pattern := range permanentFailures {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
