package detailtree

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/detailtree/pkg/domain"
)

// Runner drives a Tree from line commands read from Input, printing the rows to
// Output after every command. This allows for easy testing and integration with
// different frontends (CLI, TUI, etc).
//
// Commands (N is a row index):
//
//	expand N | collapse N | toggle N | real N | select N
//	set N <text>          edit a field or fill a ghost
//	insert <field> <class>
//	refresh | quit
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer RowRenderer
}

// RowRenderer turns the rows into text. This allows for TUI rendering (ANSI colors,
// markdown) without coupling the core package.
type RowRenderer func(rows []*domain.Row, current int) (string, error)

// NewRunner creates a new Runner with no IO; set Input and Output before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes the command loop until quit or end of input.
func (r *Runner) Run(ctx context.Context, tree *Tree) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)
	render := r.Renderer
	if render == nil {
		render = PlainRenderer
	}

	if !r.Headless {
		fmt.Fprintln(r.Output, "--- detailtree (Runner) ---")
	}
	for {
		cur, _ := tree.CurrentRow()
		out, err := render(tree.Rows(), cur)
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		fmt.Fprint(r.Output, out)

		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := lineReader.ReadString('\n')
		if err != nil && text == "" {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		line := strings.TrimSpace(text)
		if line == "quit" || line == "exit" {
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return nil
		}
		if line == "" {
			continue
		}
		if cmdErr := r.exec(ctx, tree, line); cmdErr != nil {
			fmt.Fprintf(r.Output, "error: %v\n", cmdErr)
		}
		if err == io.EOF {
			return nil
		}
	}
}

func (r *Runner) exec(ctx context.Context, tree *Tree, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	index := func() (int, string, error) {
		arg, tail, _ := strings.Cut(rest, " ")
		i, err := strconv.Atoi(arg)
		if err != nil {
			return 0, "", fmt.Errorf("%s needs a row number", verb)
		}
		return i, tail, nil
	}

	switch verb {
	case "refresh":
		return tree.Refresh(ctx, true)
	case "insert":
		field, class, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("usage: insert <field> <class>")
		}
		_, err := tree.InsertChild(ctx, field, domain.ClassID(strings.TrimSpace(class)))
		return err
	}

	i, tail, err := index()
	if err != nil {
		return err
	}
	switch verb {
	case "expand":
		return tree.Expand(ctx, i)
	case "collapse":
		return tree.Collapse(ctx, i)
	case "toggle":
		return tree.Toggle(ctx, i)
	case "real":
		return tree.MakeReal(ctx, i)
	case "select":
		return tree.SetCurrentRow(i)
	case "set":
		return tree.Edit(ctx, i, tail)
	default:
		return fmt.Errorf("unknown command %q", verb)
	}
}

// PlainRenderer prints one line per row: index, marker, indented label and value.
func PlainRenderer(rows []*domain.Row, current int) (string, error) {
	var b strings.Builder
	for i, row := range rows {
		marker := " "
		if i == current {
			marker = ">"
		}
		fmt.Fprintf(&b, "%3d %s %s%s %s\n", i, marker, strings.Repeat("  ", row.Indent), expander(row), RowText(row))
	}
	return b.String(), nil
}

func expander(row *domain.Row) string {
	switch row.Expansion {
	case domain.Expanded:
		return "-"
	case domain.Collapsed:
		return "+"
	case domain.CollapsedEmpty:
		return "·"
	default:
		return " "
	}
}

// RowText is the label and value of a row as one line of text.
func RowText(row *domain.Row) string {
	switch row.Variant {
	case domain.VariantDummy:
		return fmt.Sprintf("%s …", row.Label)
	case domain.VariantGhost:
		return fmt.Sprintf("%s: <new>", row.Label)
	case domain.VariantError:
		return fmt.Sprintf("! %v", row.Err)
	}
	text := row.Label
	if v := ValueText(row); v != "" {
		text += ": " + v
	}
	if row.DataErr != nil {
		text += "  (" + row.DataErr.Error() + ")"
	}
	return text
}

// ValueText formats the value of a row the way its control shows it.
func ValueText(row *domain.Row) string {
	if tc, ok := row.Control.(interface{ Text() string }); ok {
		return tc.Text()
	}
	if row.Value == nil {
		return ""
	}
	return fmt.Sprint(row.Value)
}
