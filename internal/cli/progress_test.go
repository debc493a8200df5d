package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressFunc(t *testing.T) {
	var out bytes.Buffer
	progress := ProgressFunc(&out, "Restoring")

	for i := 1; i <= 5; i++ {
		progress(i, 5)
	}

	assert.Contains(t, out.String(), "Restoring")
	assert.Contains(t, out.String(), "5/5")
}
