package cli

import (
	"fmt"
	"os"
)

// Execute handles the 'run' command logic, dispatching to Session or Watch mode.
func Execute(opts Options, watch bool) error {
	if watch {
		if opts.Headless {
			return fmt.Errorf("--watch and --headless cannot be used together")
		}
		return RunWatch(os.Stdout, opts)
	}
	return RunSession(opts)
}
