package stdlib

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kristofer/vyse/pkg/value"
)

// stdin is shared across calls to `input` so a REPL session reads each
// line exactly once even across repeated invocations.
var stdin = bufio.NewReader(os.Stdin)

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Display renders v the way `print` shows it, exported for cmd/vy's REPL
// to print an evaluated line's result the same way a script's own print
// calls would.
func Display(v value.Value) string { return displayString(v) }

// displayString renders v the way `print` and string coercion show it:
// strings unquoted, numbers without a superfluous trailing ".0" unless the
// value actually has a fractional part, tables/lists/closures by a terse
// tag-and-identity form. No example repo in the retrieval pack carries a
// generic "pretty print any value" library for a bespoke value
// representation like this one, so it's hand-rolled the way the teacher's
// own `Value.String()` methods are.
func displayString(v value.Value) string {
	switch x := v.(type) {
	case nil, value.Nil:
		return "nil"
	case value.Undefined:
		return "undefined"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case *value.String:
		return x.Str()
	case *value.Table:
		return fmt.Sprintf("table: %p", x)
	case *value.List:
		return formatList(x)
	case *value.Closure:
		name := "anonymous"
		if x.Proto.Name != nil {
			name = x.Proto.Name.Str()
		}
		return fmt.Sprintf("function: %s", name)
	case *value.CClosure:
		return fmt.Sprintf("function: %s", x.Name)
	case *value.Upvalue:
		return "upvalue"
	case *value.UserData:
		return fmt.Sprintf("userdata: %p", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// formatNumber renders a float64 the way scripts expect integers to look:
// no trailing ".0" for whole numbers that fit the common case, 'g'-style
// otherwise.
func formatNumber(f float64) string {
	if f == float64(int64(f)) && !isSpecialFloat(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func isSpecialFloat(f float64) bool {
	return f != f || f > 1e18 || f < -1e18
}

// formatList renders a list's elements recursively, guarding against the
// pathological case of a list containing itself by depth-limiting rather
// than tracking visited pointers (matching the teacher's simple recursive
// `String()` methods, which don't guard cycles either).
func formatList(l *value.List) string { return formatListDepth(l, 0) }

// maxListDepth is how many nested lists formatList descends into; a list
// nested deeper renders as "[...]".
const maxListDepth = 16

func formatListDepth(l *value.List, depth int) string {
	if depth >= maxListDepth {
		return "[...]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range l.Items() {
		if i > 0 {
			b.WriteString(", ")
		}
		if s, ok := v.(*value.String); ok {
			fmt.Fprintf(&b, "%q", s.Str())
		} else if inner, ok := v.(*value.List); ok {
			b.WriteString(formatListDepth(inner, depth+1))
		} else {
			b.WriteString(displayString(v))
		}
	}
	b.WriteByte(']')
	return b.String()
}
