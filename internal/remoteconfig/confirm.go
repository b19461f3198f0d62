package remoteconfig

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const forcePublishPrompt = "Are you sure you would like to force replace the template? Yes (y), No (n)"

// confirmForcePublish asks before an unconditional publish. Only "y" or "Y"
// counts as yes; EOF counts as no.
func confirmForcePublish(in io.Reader, out io.Writer) bool {
	_, _ = fmt.Fprintln(out, forcePublishPrompt)
	if in == nil {
		return false
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}
