package sysfunc

import "reflect"

// consoleLogEntry and consoleErrorEntry (handlers_amd64.s) are raw,
// win64-convention-callable entry points: the JIT's CallSystemFunction
// codegen calls them directly, with the single Number argument already
// sitting in CX per internal/compiler's argument-register convention.
// They have no Go body; the symbol is implemented in assembly.
func consoleLogEntry()
func consoleErrorEntry()

var (
	consoleLogHandler   = Handler(reflect.ValueOf(consoleLogEntry).Pointer())
	consoleErrorHandler = Handler(reflect.ValueOf(consoleErrorEntry).Pointer())
)

// Console returns the two builtins the original registered one of
// (console_log_integer_fn, see original_source/src/codegen.rs) plus a
// console.error sibling added in the same style (SPEC_FULL.md's
// SystemFunction module). Both are Number-only, arity 1, and write the
// argument's decimal value followed by a newline to stdout/stderr
// respectively via a raw write(2) syscall — no reentry into the Go
// scheduler from JIT-called code.
func Console() []*SystemFunction {
	numberOnly := func(handler Handler) Generator {
		return func(argumentCategories []Category) Handler {
			if len(argumentCategories) == 1 && argumentCategories[0] == CategoryNumber {
				return handler
			}
			return nil
		}
	}

	return []*SystemFunction{
		New("console.log", 1, numberOnly(consoleLogHandler)),
		New("console.error", 1, numberOnly(consoleErrorHandler)),
	}
}
