package cli

import (
	"fmt"
)

// Options contains the configuration shared by the commands.
type Options struct {
	Dir       string // Loam directory of template documents
	Templates string // YAML template file; overrides Dir when set
	Data      string // entity fixture
	View      string
	Root      int64
	Layout    string
	Debug     bool
	Headless  bool
	Markdown  bool
	RedisAddr string
}

func (o Options) validate() error {
	if o.Data == "" {
		return fmt.Errorf("--data is required")
	}
	if o.Dir == "" && o.Templates == "" {
		return fmt.Errorf("either --dir or --templates is required")
	}
	return nil
}
